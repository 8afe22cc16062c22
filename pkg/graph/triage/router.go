// Package triage decides which specialized worker should own a request that
// did not qualify for the fast path. Routing is a deterministic, stateless
// function of a window over the message history, with no model call and zero
// token cost.
package triage

import (
	"strings"

	"github.com/entrhq/compass/pkg/graph"
	"github.com/entrhq/compass/pkg/types"
)

// Context window sizes for the keyword scan.
const (
	userWindow      = 3
	assistantWindow = 2
)

// coverLetterPhrases route to the cover-letter writer with top priority.
var coverLetterPhrases = []string{
	"cover letter",
	"coverletter",
	"letter of application",
	"application letter",
	"letter of motivation",
	"motivation letter",
}

// jobSearchKeywords mark job/application vocabulary. Job-search intent takes
// precedence over CRM intent when both are present, since the job-search
// worker carries its own CRM-lookup tool access.
var jobSearchKeywords = []string{
	"job", "jobs", "position", "positions", "vacancy", "vacancies",
	"opening", "openings", "career", "careers", "apply", "application",
	"applications", "hiring", "recruiter", "interview", "resume", "cv",
	"posting", "postings",
}

// crmKeywords mark CRM/account vocabulary.
var crmKeywords = []string{
	"crm", "account", "accounts", "contact", "contacts", "organization",
	"organizations", "pipeline", "lead", "leads", "deal", "deals",
	"record", "records", "individual", "individuals",
}

// scraperKeywords mark browser-automation requests.
var scraperKeywords = []string{
	"scrape", "scraping", "crawl", "extract from the page",
	"browser", "automate the site", "fill the form",
}

// Config enables deployment-specific rule sets beyond the always-on
// cover-letter rule.
type Config struct {
	EnableJobSearch bool
	EnableCRM       bool
	EnableScraper   bool
}

// Router routes requests to worker variants by scanning conversation context.
type Router struct {
	cfg Config
}

// NewRouter creates a router with the given deployment rules.
func NewRouter(cfg Config) *Router {
	return &Router{cfg: cfg}
}

// Route returns the worker variant for the given history. Decision rules, in
// priority order: cover-letter phrases, then scraper, then job-search, then
// CRM vocabulary, then the general worker.
func (r *Router) Route(messages []*types.Message) string {
	window := contextWindow(messages)

	if containsAny(window, coverLetterPhrases) {
		return graph.RoleCoverLetter
	}
	if r.cfg.EnableScraper && containsAny(window, scraperKeywords) {
		return graph.RoleScraper
	}
	if r.cfg.EnableJobSearch && containsAnyWord(window, jobSearchKeywords) {
		return graph.RoleJobSearch
	}
	if r.cfg.EnableCRM && containsAnyWord(window, crmKeywords) {
		return graph.RoleCRM
	}
	return graph.RoleGeneral
}

// contextWindow concatenates the last userWindow user messages and the last
// assistantWindow assistant messages, lowercased for case-insensitive
// matching.
func contextWindow(messages []*types.Message) string {
	var users, assistants []string
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		switch msg.Role {
		case types.RoleUser:
			if len(users) < userWindow {
				users = append(users, msg.Content)
			}
		case types.RoleAssistant:
			if len(assistants) < assistantWindow {
				assistants = append(assistants, msg.Content)
			}
		}
		if len(users) >= userWindow && len(assistants) >= assistantWindow {
			break
		}
	}

	var b strings.Builder
	for _, s := range users {
		b.WriteString(s)
		b.WriteString("\n")
	}
	for _, s := range assistants {
		b.WriteString(s)
		b.WriteString("\n")
	}
	return strings.ToLower(b.String())
}

func containsAny(window string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(window, phrase) {
			return true
		}
	}
	return false
}

// containsAnyWord matches keywords on word boundaries so that, e.g., "cv"
// does not match inside "cvs receipt".
func containsAnyWord(window string, keywords []string) bool {
	words := strings.FieldsFunc(window, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(window, kw) {
				return true
			}
			continue
		}
		if _, ok := set[kw]; ok {
			return true
		}
	}
	return false
}
