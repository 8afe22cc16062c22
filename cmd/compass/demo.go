package main

import "github.com/entrhq/compass/pkg/crm"

// seedDemoData populates the in-memory stores with sample records so the
// fast paths and CRM tools have something to answer from.
func seedDemoData(store *crm.MemoryStore, docs *crm.MemoryDocumentStore) {
	store.Add(crm.Record{
		ID:   "ind-1",
		Type: crm.EntityIndividual,
		Name: "Maya Lindqvist",
		Fields: map[string]string{
			"title":   "Engineering Manager",
			"company": "Northwind Robotics",
			"email":   "maya.lindqvist@northwind.example",
		},
	})
	store.Add(crm.Record{
		ID:   "ind-2",
		Type: crm.EntityIndividual,
		Name: "Tomas Okafor",
		Fields: map[string]string{
			"title":   "Recruiter",
			"company": "Brightpath Talent",
			"email":   "t.okafor@brightpath.example",
		},
	})
	store.Add(crm.Record{
		ID:   "org-1",
		Type: crm.EntityOrganization,
		Name: "Northwind Robotics",
		Fields: map[string]string{
			"industry": "Industrial automation",
			"location": "Gothenburg, Sweden",
			"stage":    "applied",
		},
	})
	store.Add(crm.Record{
		ID:   "org-2",
		Type: crm.EntityOrganization,
		Name: "Brightpath Talent",
		Fields: map[string]string{
			"industry": "Recruiting",
			"location": "Remote",
			"stage":    "in contact",
		},
	})
	store.Add(crm.Record{
		ID:   "con-1",
		Type: crm.EntityContact,
		Name: "Priya Raman",
		Fields: map[string]string{
			"relation": "former colleague",
			"company":  "Vellum Systems",
		},
	})

	docs.Add(crm.Document{
		ID:    "resume",
		Title: "Resume",
		Text: "Senior backend engineer, 8 years. Go, distributed systems, " +
			"event-driven architectures. Led a 5-person platform team at Vellum " +
			"Systems. Looking for staff-level roles in infrastructure.",
	})
	docs.Add(crm.Document{
		ID:    "cover-letter-northwind",
		Title: "Cover letter draft for Northwind Robotics",
		Text: "Draft cover letter targeting the Staff Engineer, Platform " +
			"opening at Northwind Robotics.",
	})
}
