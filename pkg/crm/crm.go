// Package crm defines the externally-owned data capabilities the
// orchestration core consumes: CRM record lookups, document access, web
// search, and the durable conversation store. The core treats all of these
// as simple request/response collaborators; persistence and transport are
// owned elsewhere.
package crm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/entrhq/compass/pkg/types"
)

// EntityType identifies a CRM record category.
type EntityType string

const (
	EntityIndividual   EntityType = "individual"
	EntityAccount      EntityType = "account"
	EntityOrganization EntityType = "organization"
	EntityContact      EntityType = "contact"
	EntityDocument     EntityType = "document"
)

// ValidEntityType reports whether s names a known entity type.
func ValidEntityType(s string) bool {
	switch EntityType(s) {
	case EntityIndividual, EntityAccount, EntityOrganization, EntityContact, EntityDocument:
		return true
	}
	return false
}

// Record is a single CRM entry.
type Record struct {
	ID     string
	Type   EntityType
	Name   string
	Fields map[string]string
}

// Format renders a record as display text.
func (r Record) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", r.Name, r.Type)
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %s", k, r.Fields[k])
	}
	return b.String()
}

// Store provides read access to CRM records.
type Store interface {
	// Lookup returns records of the given type matching the query.
	Lookup(ctx context.Context, entityType EntityType, query string) ([]Record, error)

	// Count returns the number of records of the given type.
	Count(ctx context.Context, entityType EntityType) (int, error)

	// List returns all records of the given type.
	List(ctx context.Context, entityType EntityType) ([]Record, error)
}

// Document is a stored document with extracted text. Extraction itself
// (PDF parsing and the like) happens upstream of this interface.
type Document struct {
	ID    string
	Title string
	Text  string
}

// DocumentStore provides read access to stored documents.
type DocumentStore interface {
	Fetch(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
}

// WebSearcher performs a web search and returns formatted result text.
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// ConversationStore supplies initial messages at turn start and receives the
// turn's terminal messages. The core treats it as append-only history.
type ConversationStore interface {
	Load(ctx context.Context, conversationID string) ([]*types.Message, error)
	Append(ctx context.Context, conversationID string, messages []*types.Message) error
}
