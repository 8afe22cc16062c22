package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/compass/pkg/crm"
)

// Fast-path handlers answer simple structured queries by delegating directly
// to the CRM collaborator, skipping the worker and evaluator entirely. A
// handler failure produces an error-string answer for the turn; the turn
// still completes and is never retried.

func (g *Graph) fastLookup(ctx context.Context, s *ConversationState) string {
	records, err := g.store.Lookup(ctx, s.LookupEntityType, s.LookupQuery)
	if err != nil {
		g.log.Warnf("fast lookup failed for %s %q: %v", s.LookupEntityType, s.LookupQuery, err)
		return fmt.Sprintf("Sorry, the lookup for %q failed: %v", s.LookupQuery, err)
	}
	if len(records) == 0 {
		return fmt.Sprintf("No %s records found matching %q.", s.LookupEntityType, s.LookupQuery)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d %s record(s) matching %q:\n", len(records), s.LookupEntityType, s.LookupQuery)
	for _, rec := range records {
		b.WriteString("\n")
		b.WriteString(rec.Format())
	}
	return b.String()
}

func (g *Graph) fastCount(ctx context.Context, s *ConversationState) string {
	count, err := g.store.Count(ctx, s.LookupEntityType)
	if err != nil {
		g.log.Warnf("fast count failed for %s: %v", s.LookupEntityType, err)
		return fmt.Sprintf("Sorry, counting %s records failed: %v", s.LookupEntityType, err)
	}
	return fmt.Sprintf("There are %d %s record(s).", count, s.LookupEntityType)
}

func (g *Graph) fastList(ctx context.Context, s *ConversationState) string {
	records, err := g.store.List(ctx, s.LookupEntityType)
	if err != nil {
		g.log.Warnf("fast list failed for %s: %v", s.LookupEntityType, err)
		return fmt.Sprintf("Sorry, listing %s records failed: %v", s.LookupEntityType, err)
	}
	if len(records) == 0 {
		return fmt.Sprintf("There are no %s records.", s.LookupEntityType)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d %s record(s):\n", len(records), s.LookupEntityType)
	for _, rec := range records {
		fmt.Fprintf(&b, "- %s\n", rec.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}

// entityTypeOrEmpty normalizes a classifier-provided entity string.
func entityTypeOrEmpty(s string) crm.EntityType {
	if crm.ValidEntityType(s) {
		return crm.EntityType(s)
	}
	return ""
}
