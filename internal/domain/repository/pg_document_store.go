package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"dsa_tracker/internal/common"

	"github.com/google/uuid"
)

// ChangeNotifier fans committed writes out to subscribers, possibly in other
// processes.
type ChangeNotifier interface {
	Publish(ctx context.Context, collections ...string) error
	Subscribe(ctx context.Context, collection string, onChange func(), onError func(error)) (func(), error)
}

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    data       JSONB NOT NULL DEFAULT '{}'::jsonb,
    seq        BIGSERIAL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_seq_idx ON documents (collection, seq);
`

type pgDocumentStore struct {
	db       *sql.DB
	notifier ChangeNotifier
}

func NewPgDocumentStore(db *sql.DB, notifier ChangeNotifier) DocumentStore {
	return &pgDocumentStore{db: db, notifier: notifier}
}

// EnsureDocumentSchema creates the documents table when it is missing.
func EnsureDocumentSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, documentsSchema); err != nil {
		return fmt.Errorf("EnsureDocumentSchema: %w", err)
	}
	return nil
}

func (s *pgDocumentStore) NewID() string {
	return uuid.NewString()
}

func (s *pgDocumentStore) Read(ctx context.Context, collection string) ([]Document, error) {
	query := `SELECT id, data FROM documents WHERE collection = $1 ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("pgDocumentStore.Read: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("pgDocumentStore.Read scan: %w", err)
		}
		fields := Fields{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("pgDocumentStore.Read decode %s/%s: %w", collection, id, err)
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgDocumentStore.Read rows: %w", err)
	}
	return docs, nil
}

func (s *pgDocumentStore) ReadOne(ctx context.Context, collection, id string) (*Document, error) {
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgDocumentStore.ReadOne: %w", err)
	}
	fields := Fields{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("pgDocumentStore.ReadOne decode: %w", err)
	}
	return &Document{ID: id, Fields: fields}, nil
}

func (s *pgDocumentStore) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("pgDocumentStore.Create encode: %w", err)
	}
	id := s.NewID()
	query := `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`
	if _, err := s.db.ExecContext(ctx, query, collection, id, string(raw)); err != nil {
		return "", fmt.Errorf("pgDocumentStore.Create: %w", err)
	}
	s.publish(ctx, collection)
	return id, nil
}

func (s *pgDocumentStore) Update(ctx context.Context, collection, id string, partial Fields) error {
	raw, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("pgDocumentStore.Update encode: %w", err)
	}
	query := `UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
	          WHERE collection = $1 AND id = $2`
	res, err := s.db.ExecContext(ctx, query, collection, id, string(raw))
	if err != nil {
		return fmt.Errorf("pgDocumentStore.Update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, common.ErrNotFound)
	}
	s.publish(ctx, collection)
	return nil
}

func (s *pgDocumentStore) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`
	res, err := s.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("pgDocumentStore.Delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, common.ErrNotFound)
	}
	s.publish(ctx, collection)
	return nil
}

func (s *pgDocumentStore) Batch() Batch {
	return &pgBatch{store: s}
}

func (s *pgDocumentStore) Subscribe(ctx context.Context, collection string, onChange func(), onError func(error)) (func(), error) {
	if s.notifier == nil {
		return nil, fmt.Errorf("pgDocumentStore.Subscribe: no change feed configured: %w", common.ErrServiceUnavailable)
	}
	return s.notifier.Subscribe(ctx, collection, onChange, onError)
}

// publish is best effort; the write is already durable when it runs.
func (s *pgDocumentStore) publish(ctx context.Context, collections ...string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Publish(context.WithoutCancel(ctx), collections...)
}

type pgBatch struct {
	store *pgDocumentStore
	ops   []batchOp
}

func (b *pgBatch) Set(collection, id string, fields Fields) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, fields: fields})
}

func (b *pgBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, delete: true})
}

func (b *pgBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgBatch.Commit begin: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	upsert := `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
	           ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
	del := `DELETE FROM documents WHERE collection = $1 AND id = $2`

	for i, op := range b.ops {
		if op.delete {
			if _, err := tx.ExecContext(ctx, del, op.collection, op.id); err != nil {
				return fmt.Errorf("pgBatch.Commit op %d delete %s/%s: %w", i, op.collection, op.id, err)
			}
			continue
		}
		raw, err := json.Marshal(op.fields)
		if err != nil {
			return fmt.Errorf("pgBatch.Commit op %d encode: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, upsert, op.collection, op.id, string(raw)); err != nil {
			return fmt.Errorf("pgBatch.Commit op %d set %s/%s: %w", i, op.collection, op.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgBatch.Commit: %w", err)
	}
	b.store.publish(ctx, touchedCollections(b.ops)...)
	return nil
}
