package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rivulet-lab/rivulet/pkg/usecase"
	"github.com/rivulet-lab/rivulet/pkg/utils/logging"
)

type Server struct {
	router            *chi.Mux
	uc                *usecase.UseCases
	verifier          TokenVerifier
	heartbeatInterval time.Duration
}

type Options func(*Server)

// WithAuth enables bearer token verification on the API routes
func WithAuth(verifier TokenVerifier) Options {
	return func(s *Server) {
		s.verifier = verifier
	}
}

// WithHeartbeatInterval overrides the SSE heartbeat interval, mainly for tests
func WithHeartbeatInterval(d time.Duration) Options {
	return func(s *Server) {
		s.heartbeatInterval = d
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:            r,
		uc:                uc,
		heartbeatInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		if s.verifier != nil {
			r.Use(authMiddleware(s.verifier))
		}

		r.Post("/streams", s.streamDriveHandler)
		r.Get("/streams/{streamID}", s.streamReplayHandler)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", s.createConversationHandler)
			r.Get("/", s.listConversationsHandler)
			r.Get("/{conversationID}/messages", s.listMessagesHandler)
			r.Post("/{conversationID}/messages", s.postMessageHandler)
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck // header already committed
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
