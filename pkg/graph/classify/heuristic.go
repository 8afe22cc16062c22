package classify

import (
	"context"
	"regexp"
	"strings"

	"github.com/entrhq/compass/pkg/crm"
	"github.com/entrhq/compass/pkg/graph"
	"github.com/entrhq/compass/pkg/types"
)

// Heuristic is a zero-token classifier for deployments without a cheap model
// configured. It recognizes a narrow set of phrasings; everything else is
// IntentOther, which the driver sends down the full flow.
type Heuristic struct{}

var _ graph.IntentClassifier = Heuristic{}

var (
	lookupPattern = regexp.MustCompile(`(?i)^(?:look\s*up|find|search\s+for)\s+(?:the\s+)?(?:(individual|account|organization|contact|document)\s+)?(.+?)\s*$`)
	countPattern  = regexp.MustCompile(`(?i)^how\s+many\s+(individual|account|organization|contact|document)s?\b`)
	listPattern   = regexp.MustCompile(`(?i)^(?:list|show)\s+(?:me\s+)?(?:all\s+)?(?:my\s+)?(individual|account|organization|contact|document)s?\b`)
)

// Classify applies pattern matching to the latest user message. It never
// fails and never costs tokens.
func (Heuristic) Classify(ctx context.Context, lastUserMessage string) (*graph.Intent, types.TokenUsage, error) {
	text := strings.TrimSpace(lastUserMessage)

	if m := countPattern.FindStringSubmatch(text); m != nil {
		return &graph.Intent{Type: graph.IntentCount, Entity: entityType(m[1])}, types.TokenUsage{}, nil
	}
	if m := listPattern.FindStringSubmatch(text); m != nil {
		return &graph.Intent{Type: graph.IntentList, Entity: entityType(m[1])}, types.TokenUsage{}, nil
	}
	if m := lookupPattern.FindStringSubmatch(text); m != nil {
		entity := entityType(strings.TrimSpace(m[1]))
		if entity == "" {
			// Bare "look up X" defaults to an individual lookup.
			entity = crm.EntityIndividual
		}
		return &graph.Intent{Type: graph.IntentLookup, Entity: entity, Query: strings.TrimSpace(m[2])}, types.TokenUsage{}, nil
	}

	return &graph.Intent{Type: graph.IntentOther}, types.TokenUsage{}, nil
}

// entityType normalizes an entity string, returning "" for unknown values.
func entityType(s string) crm.EntityType {
	s = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "s")))
	if crm.ValidEntityType(s) {
		return crm.EntityType(s)
	}
	return ""
}
