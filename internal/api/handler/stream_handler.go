package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"dsa_tracker/internal/api/middleware"
	"dsa_tracker/internal/app/livesync"
	"dsa_tracker/internal/app/session"
	"dsa_tracker/internal/common"
	"dsa_tracker/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

const streamHeartbeat = 15 * time.Second

// StreamHandler pushes a fresh tree and stats to the client every time the
// caller's collections change. A stream lives no longer than the token that
// opened it: it ends on sign-out, at token expiry, or when a heartbeat finds
// the token revoked by another instance.
type StreamHandler struct {
	controller *livesync.Controller
	revoked    middleware.RevocationChecker
	log        *logger.Logger
	heartbeat  time.Duration

	mu      sync.Mutex
	streams map[string]map[*session.Session]struct{} // by token id
}

func NewStreamHandler(controller *livesync.Controller, revoked middleware.RevocationChecker, log *logger.Logger) *StreamHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &StreamHandler{
		controller: controller,
		revoked:    revoked,
		log:        log.With("component", "stream"),
		heartbeat:  streamHeartbeat,
		streams:    make(map[string]map[*session.Session]struct{}),
	}
}

func (h *StreamHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tree/stream", h.streamTree)
}

// EndStreams signs out every open stream opened with tokenID and returns how
// many it ended.
func (h *StreamHandler) EndStreams(tokenID string) int {
	h.mu.Lock()
	sessions := h.streams[tokenID]
	delete(h.streams, tokenID)
	h.mu.Unlock()

	for sess := range sessions {
		endSession(sess)
	}
	if len(sessions) > 0 {
		h.log.Info("tree streams ended by sign-out", "streams", len(sessions))
	}
	return len(sessions)
}

func (h *StreamHandler) track(tokenID string, sess *session.Session) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streams[tokenID] == nil {
		h.streams[tokenID] = make(map[*session.Session]struct{})
	}
	h.streams[tokenID][sess] = struct{}{}

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.streams[tokenID], sess)
		if len(h.streams[tokenID]) == 0 {
			delete(h.streams, tokenID)
		}
	}
}

// endSession drops the tenant first so nothing more is published, then ends
// the Updates channel the stream loop is reading.
func endSession(sess *session.Session) {
	_ = sess.SetTenant(context.Background(), "")
	sess.Close()
}

func (h *StreamHandler) stillValid(ctx context.Context, tokenID string) bool {
	if h.revoked == nil {
		return true
	}
	revoked, err := h.revoked.IsRevoked(ctx, tokenID)
	if err != nil {
		h.log.Warn("revocation check failed", "error", err)
		return true
	}
	return !revoked
}

func (h *StreamHandler) streamTree(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	tokenID, expiresAt, ok := middleware.GetTokenFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing token context")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		common.RespondWithError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	sess := session.New(h.controller, h.log)
	defer endSession(sess)
	untrack := h.track(tokenID, sess)
	defer untrack()

	updates, cancel := sess.Updates()
	defer cancel()
	if err := sess.SetTenant(r.Context(), userID); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}

	// the server's WriteTimeout would otherwise cut the stream
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	var expired <-chan time.Time
	if !expiresAt.IsZero() {
		expiry := time.NewTimer(time.Until(expiresAt))
		defer expiry.Stop()
		expired = expiry.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-expired:
			h.log.Debug("tree stream ended: token expired", "tenant", userID)
			return
		case <-heartbeat.C:
			if !h.stillValid(r.Context(), tokenID) {
				h.log.Debug("tree stream ended: token revoked", "tenant", userID)
				return
			}
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				h.log.Error("failed to encode snapshot", "tenant", userID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: tree\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
