package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/compass/pkg/crm"
)

// CRMLookupTool searches CRM records by entity type and query.
type CRMLookupTool struct {
	store crm.Store
}

// NewCRMLookupTool creates a CRM lookup tool over the given store.
func NewCRMLookupTool(store crm.Store) *CRMLookupTool {
	return &CRMLookupTool{store: store}
}

func (t *CRMLookupTool) Name() string {
	return "crm_lookup"
}

func (t *CRMLookupTool) Description() string {
	return "Search CRM records of a given type (individual, account, organization, contact) by name or attribute text."
}

func (t *CRMLookupTool) Schema() map[string]any {
	return ObjectSchema(map[string]any{
		"entity_type": StringProperty("Record type: individual, account, organization, or contact"),
		"query":       StringProperty("Search text to match against record names and fields"),
	}, []string{"entity_type", "query"})
}

func (t *CRMLookupTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	entityType, _ := StringArg(args, "entity_type")
	query, _ := StringArg(args, "query")
	if !crm.ValidEntityType(entityType) {
		return "", fmt.Errorf("unknown entity type %q", entityType)
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}

	records, err := t.store.Lookup(ctx, crm.EntityType(entityType), query)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return fmt.Sprintf("No %s records match %q.", entityType, query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d matching %s record(s):\n", len(records), entityType)
	for _, rec := range records {
		b.WriteString("\n")
		b.WriteString(rec.Format())
	}
	return b.String(), nil
}

// CRMListTool lists all records of an entity type.
type CRMListTool struct {
	store crm.Store
}

// NewCRMListTool creates a CRM list tool over the given store.
func NewCRMListTool(store crm.Store) *CRMListTool {
	return &CRMListTool{store: store}
}

func (t *CRMListTool) Name() string {
	return "crm_list"
}

func (t *CRMListTool) Description() string {
	return "List all CRM records of a given type (individual, account, organization, contact)."
}

func (t *CRMListTool) Schema() map[string]any {
	return ObjectSchema(map[string]any{
		"entity_type": StringProperty("Record type: individual, account, organization, or contact"),
	}, []string{"entity_type"})
}

func (t *CRMListTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	entityType, _ := StringArg(args, "entity_type")
	if !crm.ValidEntityType(entityType) {
		return "", fmt.Errorf("unknown entity type %q", entityType)
	}

	records, err := t.store.List(ctx, crm.EntityType(entityType))
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return fmt.Sprintf("There are no %s records.", entityType), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d %s record(s):\n", len(records), entityType)
	for _, rec := range records {
		fmt.Fprintf(&b, "- %s\n", rec.Name)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
