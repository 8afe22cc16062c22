package crm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/compass/pkg/types"
)

// MemoryStore is an in-memory Store used by tests and the CLI demo.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[EntityType][]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[EntityType][]Record)}
}

// Add inserts a record.
func (s *MemoryStore) Add(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Type] = append(s.records[rec.Type], rec)
}

// Lookup matches records whose name or any field contains the query,
// case-insensitively.
func (s *MemoryStore) Lookup(ctx context.Context, entityType EntityType, query string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var matches []Record
	for _, rec := range s.records[entityType] {
		if strings.Contains(strings.ToLower(rec.Name), needle) {
			matches = append(matches, rec)
			continue
		}
		for _, v := range rec.Fields {
			if strings.Contains(strings.ToLower(v), needle) {
				matches = append(matches, rec)
				break
			}
		}
	}
	return matches, nil
}

func (s *MemoryStore) Count(ctx context.Context, entityType EntityType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[entityType]), nil
}

func (s *MemoryStore) List(ctx context.Context, entityType EntityType) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records[entityType]))
	copy(out, s.records[entityType])
	return out, nil
}

// MemoryDocumentStore is an in-memory DocumentStore.
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

var _ DocumentStore = (*MemoryDocumentStore)(nil)

// NewMemoryDocumentStore creates an empty in-memory document store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string]Document)}
}

// Add inserts a document.
func (s *MemoryDocumentStore) Add(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
}

func (s *MemoryDocumentStore) Fetch(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %q not found", id)
	}
	return &doc, nil
}

func (s *MemoryDocumentStore) List(ctx context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	return out, nil
}

// MemoryConversationStore is an in-memory ConversationStore.
type MemoryConversationStore struct {
	mu            sync.RWMutex
	conversations map[string][]*types.Message
}

var _ ConversationStore = (*MemoryConversationStore)(nil)

// NewMemoryConversationStore creates an empty in-memory conversation store.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{conversations: make(map[string][]*types.Message)}
}

func (s *MemoryConversationStore) Load(ctx context.Context, conversationID string) ([]*types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.conversations[conversationID]
	out := make([]*types.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryConversationStore) Append(ctx context.Context, conversationID string, messages []*types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversationID] = append(s.conversations[conversationID], messages...)
	return nil
}
