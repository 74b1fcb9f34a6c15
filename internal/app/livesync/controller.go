// Package livesync keeps a tenant's category tree current by watching the
// categories and problems collections and rebuilding on every change.
package livesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dsa_tracker/internal/app/tree"
	"dsa_tracker/internal/common"
	"dsa_tracker/internal/domain/model"
	"dsa_tracker/internal/domain/repository"
	"dsa_tracker/internal/platform/logger"
	"dsa_tracker/internal/platform/metrics"

	"golang.org/x/sync/errgroup"
)

// TreeHandler receives each rebuilt tree. It runs on the subscription's own
// goroutine and must not call the unsubscribe function synchronously.
type TreeHandler func(tree []model.Category)

// ErrorHandler receives rebuild and feed failures for a tenant.
type ErrorHandler func(tenantID string, err error)

type Controller struct {
	store   repository.DocumentStore
	log     *logger.Logger
	metrics *metrics.Metrics
	onError ErrorHandler
}

type Option func(*Controller)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Controller) { c.onError = h }
}

func NewController(store repository.DocumentStore, log *logger.Logger, opts ...Option) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	c := &Controller{store: store, log: log.With("component", "livesync")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rebuild reads both collections once and returns the reshaped tree.
// Documents that fail validation are logged and left out.
func (c *Controller) Rebuild(ctx context.Context, tenantID string) ([]model.Category, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required: %w", common.ErrValidation)
	}
	start := time.Now()
	catPath, probPath := repository.CategoriesPath(tenantID), repository.ProblemsPath(tenantID)

	var catDocs, probDocs []repository.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := c.store.Read(gctx, catPath)
		if err != nil {
			return fmt.Errorf("read categories: %w", err)
		}
		catDocs = docs
		return nil
	})
	g.Go(func() error {
		docs, err := c.store.Read(gctx, probPath)
		if err != nil {
			return fmt.Errorf("read problems: %w", err)
		}
		probDocs = docs
		return nil
	})
	if err := g.Wait(); err != nil {
		c.metrics.ObserveRebuild("error", time.Since(start))
		return nil, err
	}

	cats, badCats := tree.DecodeCategories(catPath, catDocs)
	probs, badProbs := tree.DecodeProblems(probPath, probDocs)
	c.reportMalformed("categories", badCats)
	c.reportMalformed("problems", badProbs)

	tree.SortCategories(cats)
	result := tree.Reshape(cats, probs)
	c.metrics.ObserveRebuild("ok", time.Since(start))
	return result, nil
}

func (c *Controller) reportMalformed(collection string, errs []error) {
	for _, err := range errs {
		c.metrics.MalformedDocument(collection)
		c.log.Warn("skipping malformed document", "collection", collection, "error", err)
	}
}

// Subscribe publishes the tenant's tree to onTree now and after every change
// to either collection. Bursts of changes collapse into a single rebuild that
// reflects the latest state. The returned function stops the subscription; it
// is safe to call more than once and no onTree call starts after it returns.
func (c *Controller) Subscribe(ctx context.Context, tenantID string, onTree TreeHandler) (func(), error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required: %w", common.ErrValidation)
	}
	if onTree == nil {
		return nil, fmt.Errorf("tree handler is required: %w", common.ErrValidation)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &subscription{
		controller: c,
		tenantID:   tenantID,
		onTree:     onTree,
		trigger:    make(chan struct{}, 1),
		cancel:     cancel,
	}

	for _, path := range []string{repository.CategoriesPath(tenantID), repository.ProblemsPath(tenantID)} {
		collection := path
		detach, err := c.store.Subscribe(runCtx, collection, s.poke, func(err error) {
			c.report(tenantID, &common.SubscriptionError{Collection: collection, Cause: err})
		})
		if err != nil {
			s.close()
			return nil, fmt.Errorf("subscribe to %s: %w", collection, err)
		}
		s.detach = append(s.detach, detach)
	}

	s.attached = true
	c.metrics.SubscriptionOpened()
	c.log.Debug("tree subscription opened", "tenant", tenantID)

	// the store does not promise an event on attach
	s.poke()
	go s.run(runCtx)

	return s.close, nil
}

func (c *Controller) report(tenantID string, err error) {
	c.log.Error("tree sync failed", "tenant", tenantID, "error", err)
	if c.onError != nil {
		c.onError(tenantID, err)
	}
}

type subscription struct {
	controller *Controller
	tenantID   string
	onTree     TreeHandler
	trigger    chan struct{}
	cancel     context.CancelFunc
	detach     []func()

	attached bool

	// mu serializes delivery with close
	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// poke requests a rebuild. A request already pending absorbs this one.
func (s *subscription) poke() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *subscription) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.close()
			return
		case <-s.trigger:
			s.rebuild(ctx)
		}
	}
}

func (s *subscription) rebuild(ctx context.Context) {
	c := s.controller
	result, err := c.Rebuild(ctx, s.tenantID)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			c.report(s.tenantID, err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.onTree(result)
}

func (s *subscription) close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		for _, detach := range s.detach {
			detach()
		}
		if s.attached {
			s.controller.metrics.SubscriptionClosed()
			s.controller.log.Debug("tree subscription closed", "tenant", s.tenantID)
		}
	})
}
