package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"dsa_tracker/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateReadUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()
	col := ProblemsPath("u1")

	id, err := s.Create(ctx, col, Fields{"title": "Two Sum", "completed": false, "tags": []string{"array"}})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.Update(ctx, col, id, Fields{"completed": true}))

	doc, err := s.ReadOne(ctx, col, id)
	require.NoError(t, err)
	assert.Equal(t, "Two Sum", doc.Fields["title"])
	assert.Equal(t, true, doc.Fields["completed"])
	assert.Equal(t, []any{"array"}, doc.Fields["tags"])
}

func TestMemoryStore_ReadPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()
	col := CategoriesPath("u1")

	var ids []string
	for _, name := range []string{"c", "a", "b"} {
		id, err := s.Create(ctx, col, Fields{"name": name})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	docs, err := s.Read(ctx, col)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, d := range docs {
		assert.Equal(t, ids[i], d.ID)
	}

	empty, err := s.Read(ctx, CategoriesPath("nobody"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_MissingDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()
	col := ProblemsPath("u1")

	_, err := s.ReadOne(ctx, col, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, col, "nope", Fields{"completed": true}), common.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, col, "nope"), common.ErrNotFound)
}

func TestMemoryStore_ReturnedFieldsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()
	col := ProblemsPath("u1")
	id, err := s.Create(ctx, col, Fields{"title": "A"})
	require.NoError(t, err)

	doc, err := s.ReadOne(ctx, col, id)
	require.NoError(t, err)
	doc.Fields["title"] = "mutated"

	again, err := s.ReadOne(ctx, col, id)
	require.NoError(t, err)
	assert.Equal(t, "A", again.Fields["title"])
}

func TestMemoryStore_BatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()
	cats, probs := CategoriesPath("u1"), ProblemsPath("u1")

	catID, err := s.Create(ctx, cats, Fields{"name": "Arrays"})
	require.NoError(t, err)
	p1, err := s.Create(ctx, probs, Fields{"title": "A", "category": catID})
	require.NoError(t, err)

	s.FailNextCommit(errors.New("unavailable"))
	b := s.Batch()
	b.Delete(probs, p1)
	b.Delete(cats, catID)
	require.Error(t, b.Commit(ctx))

	docs, err := s.Read(ctx, probs)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	docs, err = s.Read(ctx, cats)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	b = s.Batch()
	b.Delete(probs, p1)
	b.Delete(cats, catID)
	require.NoError(t, b.Commit(ctx))

	docs, err = s.Read(ctx, probs)
	require.NoError(t, err)
	assert.Empty(t, docs)
	docs, err = s.Read(ctx, cats)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStore_BatchSetWithExplicitID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()
	cats, probs := CategoriesPath("u1"), ProblemsPath("u1")

	b := s.Batch()
	b.Set(cats, "cat-1", Fields{"name": "Graphs"})
	b.Set(probs, "p-1", Fields{"title": "BFS", "category": "cat-1"})
	require.NoError(t, b.Commit(ctx))

	doc, err := s.ReadOne(ctx, probs, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "cat-1", doc.Fields["category"])
}

func TestMemoryStore_SubscribeAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()
	col := ProblemsPath("u1")

	var calls atomic.Int32
	unsubscribe, err := s.Subscribe(ctx, col, func() { calls.Add(1) }, nil)
	require.NoError(t, err)

	_, err = s.Create(ctx, col, Fields{"title": "A"})
	require.NoError(t, err)
	_, err = s.Create(ctx, ProblemsPath("someone-else"), Fields{"title": "B"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	unsubscribe()
	unsubscribe()

	_, err = s.Create(ctx, col, Fields{"title": "C"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoryStore_SubscriptionEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryDocumentStore()
	col := ProblemsPath("u1")

	var calls atomic.Int32
	_, err := s.Subscribe(ctx, col, func() { calls.Add(1) }, nil)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		return len(s.listeners[col]) == 0
	}, time.Second, 5*time.Millisecond)

	_, err = s.Create(context.Background(), col, Fields{"title": "A"})
	require.NoError(t, err)
	assert.Equal(t, int32(0), calls.Load())
}
