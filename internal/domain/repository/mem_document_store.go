package repository

import (
	"context"
	"fmt"
	"sync"

	"dsa_tracker/internal/common"

	"github.com/google/uuid"
)

type memoryCollection struct {
	order []string
	docs  map[string]Fields
}

// MemoryDocumentStore keeps documents in process. It backs STORE_DRIVER=memory
// and the test suites.
type MemoryDocumentStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	failCommit  error

	listenersMu  sync.Mutex
	listeners    map[string]map[int]func()
	nextListener int
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		collections: make(map[string]*memoryCollection),
		listeners:   make(map[string]map[int]func()),
	}
}

// FailNextCommit makes the next batch commit return err without applying anything.
func (s *MemoryDocumentStore) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommit = err
}

func (s *MemoryDocumentStore) NewID() string {
	return uuid.NewString()
}

func (s *MemoryDocumentStore) Read(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[collection]
	if !ok {
		return []Document{}, nil
	}
	out := make([]Document, 0, len(col.order))
	for _, id := range col.order {
		fields, err := normalizeFields(col.docs[id])
		if err != nil {
			return nil, err
		}
		out = append(out, Document{ID: id, Fields: fields})
	}
	return out, nil
}

func (s *MemoryDocumentStore) ReadOne(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, common.ErrNotFound)
	}
	doc, ok := col.docs[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, common.ErrNotFound)
	}
	fields, err := normalizeFields(doc)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Fields: fields}, nil
}

func (s *MemoryDocumentStore) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	normalized, err := normalizeFields(fields)
	if err != nil {
		return "", err
	}
	id := s.NewID()

	s.mu.Lock()
	s.put(collection, id, normalized)
	s.mu.Unlock()

	s.notify(collection)
	return id, nil
}

func (s *MemoryDocumentStore) Update(ctx context.Context, collection, id string, partial Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := normalizeFields(partial)
	if err != nil {
		return err
	}

	s.mu.Lock()
	col, ok := s.collections[collection]
	if !ok || col.docs[id] == nil {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, common.ErrNotFound)
	}
	merged := make(Fields, len(col.docs[id])+len(normalized))
	for k, v := range col.docs[id] {
		merged[k] = v
	}
	for k, v := range normalized {
		merged[k] = v
	}
	col.docs[id] = merged
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

func (s *MemoryDocumentStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	col, ok := s.collections[collection]
	if !ok || col.docs[id] == nil {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, common.ErrNotFound)
	}
	s.remove(collection, id)
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

func (s *MemoryDocumentStore) Batch() Batch {
	return &memoryBatch{store: s}
}

func (s *MemoryDocumentStore) Subscribe(ctx context.Context, collection string, onChange func(), onError func(error)) (func(), error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.listenersMu.Lock()
	key := s.nextListener
	s.nextListener++
	if s.listeners[collection] == nil {
		s.listeners[collection] = make(map[int]func())
	}
	s.listeners[collection][key] = onChange
	s.listenersMu.Unlock()

	var once sync.Once
	var stop func() bool
	unsubscribe := func() {
		once.Do(func() {
			if stop != nil {
				stop()
			}
			s.listenersMu.Lock()
			delete(s.listeners[collection], key)
			if len(s.listeners[collection]) == 0 {
				delete(s.listeners, collection)
			}
			s.listenersMu.Unlock()
		})
	}
	stop = context.AfterFunc(ctx, unsubscribe)
	return unsubscribe, nil
}

func (s *MemoryDocumentStore) put(collection, id string, fields Fields) {
	col, ok := s.collections[collection]
	if !ok {
		col = &memoryCollection{docs: make(map[string]Fields)}
		s.collections[collection] = col
	}
	if _, exists := col.docs[id]; !exists {
		col.order = append(col.order, id)
	}
	col.docs[id] = fields
}

func (s *MemoryDocumentStore) remove(collection, id string) {
	col, ok := s.collections[collection]
	if !ok {
		return
	}
	if _, exists := col.docs[id]; !exists {
		return
	}
	delete(col.docs, id)
	for i, existing := range col.order {
		if existing == id {
			col.order = append(col.order[:i], col.order[i+1:]...)
			break
		}
	}
}

func (s *MemoryDocumentStore) notify(collections ...string) {
	var fns []func()
	s.listenersMu.Lock()
	for _, c := range collections {
		for _, fn := range s.listeners[c] {
			fns = append(fns, fn)
		}
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

type memoryBatch struct {
	store *MemoryDocumentStore
	ops   []batchOp
}

func (b *memoryBatch) Set(collection, id string, fields Fields) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, fields: fields})
}

func (b *memoryBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, delete: true})
}

func (b *memoryBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(b.ops) == 0 {
		return nil
	}
	// Encode everything up front so applying the ops below cannot fail halfway.
	prepared := make([]batchOp, len(b.ops))
	for i, op := range b.ops {
		prepared[i] = op
		if op.delete {
			continue
		}
		normalized, err := normalizeFields(op.fields)
		if err != nil {
			return fmt.Errorf("batch op %d on %s/%s: %w", i, op.collection, op.id, err)
		}
		prepared[i].fields = normalized
	}

	s := b.store
	s.mu.Lock()
	if s.failCommit != nil {
		err := s.failCommit
		s.failCommit = nil
		s.mu.Unlock()
		return fmt.Errorf("batch commit: %w", err)
	}
	for _, op := range prepared {
		if op.delete {
			s.remove(op.collection, op.id)
		} else {
			s.put(op.collection, op.id, op.fields)
		}
	}
	s.mu.Unlock()

	s.notify(touchedCollections(prepared)...)
	return nil
}
