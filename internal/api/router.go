package api

import (
	"net/http"
	"time"

	"dsa_tracker/internal/api/handler"
	"dsa_tracker/internal/api/middleware"
	"dsa_tracker/internal/app/livesync"
	"dsa_tracker/internal/app/service"
	"dsa_tracker/internal/common/security"
	"dsa_tracker/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Services struct {
	Auth       *service.AuthService
	Tracker    *service.TrackerService
	Execution  *service.ExecutionService
	Assistant  *service.AssistantService
	Controller *livesync.Controller
	Gatherer   prometheus.Gatherer
	Log        *logger.Logger
}

func NewRouter(s Services) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	// Tokens come from "Authorization: Bearer T" or, for EventSource clients, the jwt cookie.
	// Never from the query string: the access log prints the full URI.
	r.Use(jwtauth.Verify(security.TokenAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	authenticator := middleware.Authenticator(s.Auth)
	authHandler := handler.NewAuthHandler(s.Auth)
	trackerHandler := handler.NewTrackerHandler(s.Tracker, s.Controller)
	editorHandler := handler.NewEditorHandler(s.Execution, s.Assistant)
	streamHandler := handler.NewStreamHandler(s.Controller, s.Auth, s.Log)
	authHandler.OnSignOut(func(tokenID string) { streamHandler.EndStreams(tokenID) })

	r.Route("/api/v1", func(v1 chi.Router) {
		// Long-lived stream: no request timeout.
		v1.Group(func(stream chi.Router) {
			stream.Use(authenticator)
			streamHandler.RegisterRoutes(stream)
		})

		v1.Group(func(timed chi.Router) {
			timed.Use(chiMiddleware.Timeout(60 * time.Second))

			timed.Route("/auth", func(auth chi.Router) {
				authHandler.RegisterRoutes(auth)
				auth.Group(func(session chi.Router) {
					session.Use(authenticator)
					authHandler.RegisterSessionRoutes(session)
				})
			})

			timed.Group(func(protected chi.Router) {
				protected.Use(authenticator)
				trackerHandler.RegisterRoutes(protected)
				editorHandler.RegisterRoutes(protected)
			})
		})
	})

	return r
}
