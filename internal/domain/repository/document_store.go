package repository

import (
	"context"
	"encoding/json"
	"fmt"
)

// Fields is the JSON object body of a document.
type Fields map[string]any

type Document struct {
	ID     string
	Fields Fields
}

// DocumentStore is a per-tenant hierarchical document database with change
// subscriptions. Collection paths look like "users/{tenant}/problems".
type DocumentStore interface {
	// Read returns every document of a collection in insertion order.
	Read(ctx context.Context, collection string) ([]Document, error)
	// ReadOne returns common.ErrNotFound when the document does not exist.
	ReadOne(ctx context.Context, collection, id string) (*Document, error)
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	// Update shallow-merges partial into the document; a nil value stores null.
	Update(ctx context.Context, collection, id string, partial Fields) error
	Delete(ctx context.Context, collection, id string) error
	NewID() string
	Batch() Batch
	// Subscribe calls onChange after every committed write to collection until
	// the returned function is called. onError receives failures of the
	// underlying feed after attach.
	Subscribe(ctx context.Context, collection string, onChange func(), onError func(error)) (func(), error)
}

// Batch buffers writes and applies them all-or-nothing on Commit.
type Batch interface {
	Set(collection, id string, fields Fields)
	Delete(collection, id string)
	Commit(ctx context.Context) error
}

func CategoriesPath(tenantID string) string {
	return "users/" + tenantID + "/categories"
}

func ProblemsPath(tenantID string) string {
	return "users/" + tenantID + "/problems"
}

// normalizeFields round-trips fields through JSON so every store hands back
// the same value shapes (RFC 3339 strings for times, float64 for numbers).
func normalizeFields(fields Fields) (Fields, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	out := Fields{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

type batchOp struct {
	collection string
	id         string
	fields     Fields // nil for delete
	delete     bool
}

func touchedCollections(ops []batchOp) []string {
	seen := make(map[string]bool, len(ops))
	var out []string
	for _, op := range ops {
		if !seen[op.collection] {
			seen[op.collection] = true
			out = append(out, op.collection)
		}
	}
	return out
}
