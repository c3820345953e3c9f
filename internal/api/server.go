package api

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"headshotstudio/internal/config"
	"headshotstudio/internal/generation"
	"headshotstudio/internal/httpx"
	"headshotstudio/internal/logging"
	"headshotstudio/internal/lora"
	"headshotstudio/internal/store"
)

// Deps are the collaborators the server cannot build from config alone.
type Deps struct {
	Store      *store.Store
	Generator  generation.Generator
	Describer  lora.Describer
	HTTPClient *http.Client
}

type Server struct {
	cfg      config.Config
	store    *store.Store
	gen      *generation.Service
	registry *lora.Registry
	gallery  *galleryHub
	mirror   *bunnyMirror
}

func NewServer(cfg config.Config, deps Deps) *Server {
	s := &Server{
		cfg:   cfg,
		store: deps.Store,
		gen: generation.NewService(deps.Store, deps.Generator, generation.Options{
			DefaultModel: cfg.ReplicateDefaultModel,
			Concurrency:  cfg.GenerateConcurrency,
		}),
		registry: lora.NewRegistry(deps.Store, deps.Describer),
		gallery:  newGalleryHub(),
	}
	if cfg.BunnyConfigured() {
		s.mirror = newBunnyMirror(cfg, deps.HTTPClient)
	}
	go s.gallery.run()
	return s
}

// Close stops background workers.
func (s *Server) Close() {
	s.gallery.stop()
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware)
	r.Use(s.corsMiddleware().Handler)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.With(s.requireSession).Get("/me", s.handleMe)
		})

		r.With(s.optionalSession).Post("/generate", s.handleGenerate)

		// Saving and favoriting also accept the session token in the JSON body.
		r.With(s.optionalSession).Post("/images", s.handleImageSave)
		r.With(s.requireSession).Get("/images", s.handleImagesList)
		r.With(s.requireSession).Patch("/images/{id}", s.handleImagePatch)
		r.With(s.requireSession).Delete("/images/{id}", s.handleImageDelete)

		r.Get("/gallery", s.handleGallery)
		r.Get("/gallery/ws", s.handleGalleryWebSocket)

		r.With(s.optionalSession).Post("/favorites", s.handleFavoriteAdd)
		r.With(s.requireSession).Delete("/favorites", s.handleFavoriteRemove)

		r.With(s.optionalSession).Get("/lora-models", s.handleLoraModels)
		r.With(s.requireSession).Post("/lora-models", s.handleLoraParametersSave)

		r.Route("/debug", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/tables", s.handleDebugTables)
			r.Post("/trigger-column", s.handleDebugTriggerColumn)
			r.Post("/lora-trigger", s.handleDebugLoraTrigger)
			r.Post("/setup-lora", s.handleDebugSetupLora)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteError(w, http.StatusNotFound, "Not found")
		})
	})

	if dir := strings.TrimSpace(s.cfg.StaticDir); dir != "" {
		r.Handle("/*", SPAHandler(dir))
	}

	return r
}

func (s *Server) corsMiddleware() *cors.Cors {
	origins := s.cfg.CORSAllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Admin-Token"},
		ExposedHeaders:   []string{httpx.SessionExpiresHeader},
		AllowCredentials: len(s.cfg.CORSAllowOrigins) > 0,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	// If ADMIN_TOKEN is not set, don't gate admin endpoints (dev convenience).
	if strings.TrimSpace(s.cfg.AdminToken) == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-Admin-Token"))
		if token == "" {
			token = httpx.BearerToken(r)
		}
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("key"))
		}

		if token == "" || token != s.cfg.AdminToken {
			httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized access")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func SPAHandler(staticDir string) http.Handler {
	fsys := os.DirFS(staticDir)
	files := http.FileServer(http.FS(fsys))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		// Cache hashed build assets aggressively.
		if strings.HasPrefix(path, "assets/") || strings.HasPrefix(path, "_next/static/") {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}

		if _, err := fs.Stat(fsys, path); err == nil {
			files.ServeHTTP(w, r)
			return
		} else if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("static file lookup failed")
		}

		// Fallback to SPA entrypoint for client-side routes.
		r.URL.Path = "/"
		files.ServeHTTP(w, r)
	})
}
