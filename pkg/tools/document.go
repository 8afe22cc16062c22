package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/compass/pkg/crm"
)

// DocumentFetchTool retrieves a stored document's extracted text.
type DocumentFetchTool struct {
	store crm.DocumentStore
}

// NewDocumentFetchTool creates a document fetch tool over the given store.
func NewDocumentFetchTool(store crm.DocumentStore) *DocumentFetchTool {
	return &DocumentFetchTool{store: store}
}

func (t *DocumentFetchTool) Name() string {
	return "document_fetch"
}

func (t *DocumentFetchTool) Description() string {
	return "Fetch the extracted text of a stored document by its ID. Use document_list first to discover IDs."
}

func (t *DocumentFetchTool) Schema() map[string]any {
	return ObjectSchema(map[string]any{
		"document_id": StringProperty("ID of the document to fetch"),
	}, []string{"document_id"})
}

func (t *DocumentFetchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	id, _ := StringArg(args, "document_id")
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("document_id is required")
	}

	doc, err := t.store.Fetch(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n\n%s", doc.Title, doc.Text), nil
}

// DocumentListTool lists stored documents.
type DocumentListTool struct {
	store crm.DocumentStore
}

// NewDocumentListTool creates a document list tool over the given store.
func NewDocumentListTool(store crm.DocumentStore) *DocumentListTool {
	return &DocumentListTool{store: store}
}

func (t *DocumentListTool) Name() string {
	return "document_list"
}

func (t *DocumentListTool) Description() string {
	return "List the stored documents available to fetch, with their IDs and titles."
}

func (t *DocumentListTool) Schema() map[string]any {
	return ObjectSchema(map[string]any{}, nil)
}

func (t *DocumentListTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	docs, err := t.store.List(ctx)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "There are no stored documents.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d document(s):\n", len(docs))
	for _, doc := range docs {
		fmt.Fprintf(&b, "- %s: %s\n", doc.ID, doc.Title)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
