package handlers

import (
	"net/http"

	"github.com/kevinye7/PokeHub/internal/engine"
	"github.com/kevinye7/PokeHub/internal/middleware"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ObjectSource serves stored avatar bytes for backends without a real
// object store.
type ObjectSource interface {
	Object(path string) ([]byte, bool)
}

// Server holds all server dependencies
type Server struct {
	Engine  *engine.Engine
	Metrics *utils.MetricsCollector
	Logger  *zap.Logger
	Objects ObjectSource
}

// NewServer creates a new Server instance with the given components
func NewServer(e *engine.Engine, logger *zap.Logger) *Server {
	return &Server{
		Engine:  e,
		Metrics: e.Metrics(),
		Logger:  utils.OrNop(logger),
	}
}

type RouterConfig struct {
	AllowedOrigins []string
	MetricsEnabled bool
}

// Routes builds the local API.
func (s *Server) Routes(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(s.Logger, s.Metrics))
	r.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.AllowedOrigins)))

	r.Get("/health", s.HandleHealth())
	if cfg.MetricsEnabled {
		r.Handle("/metrics", s.Metrics.Handler())
	}
	r.Get("/session", s.HandleSession())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.HandleSignUp())
		r.Post("/login", s.HandleLogin())
		r.Post("/logout", s.HandleLogout())
	})

	r.Get("/feed", s.HandleLoadFeed())
	r.Get("/feed/state", s.HandleFeedState())

	r.Route("/posts", func(r chi.Router) {
		r.Post("/", s.HandleCreatePost())
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.HandleGetPost())
			r.Put("/", s.HandleUpdatePost())
			r.Delete("/", s.HandleDeletePost())
			r.Post("/like", s.HandleToggleLike())
			r.Get("/comments", s.HandleListComments())
			r.Post("/comments", s.HandleAddComment())
			r.Put("/comments/draft", s.HandleSetCommentDraft())
			r.Post("/comments/submit", s.HandleSubmitComment())
		})
	})

	r.Get("/profiles/{id}", s.HandleViewProfile())
	r.Put("/profile", s.HandleUpdateProfile())
	r.Post("/usernames", s.HandleUsernames())

	if s.Objects != nil {
		r.Get("/storage/v1/object/public/avatars/*", s.HandleAvatarObject())
	}
	return r
}
