// Package server provides the HTTP server for the contacts web UI.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"

	"github.com/arupa444/Connection-That-Grow/app/server/web"
	"github.com/arupa444/Connection-That-Grow/app/store"
)

// ContactStore defines the interface for contact storage operations.
// Defined here (consumer side) to allow different store implementations.
type ContactStore interface {
	List(ctx context.Context) ([]store.Contact, error)
	Get(ctx context.Context, id int64) (store.Contact, error)
	Add(ctx context.Context, c store.Contact) (int64, error)
	Update(ctx context.Context, c store.Contact) error
	Delete(ctx context.Context, id int64) error
}

// Validator defines the interface for contact validation.
type Validator interface {
	ValidateContact(c store.Contact) error
}

// Config holds server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Version         string
	UsersFile       string        // path to users.json
	UsersHotReload  bool          // watch users file for changes and reload
	LoginTTL        time.Duration // session duration
	BaseURL         string        // base URL path for reverse proxy (e.g., /contacts)

	// limits
	BodySizeLimit    int64 // max request body size in bytes
	RequestsPerSec   int64 // max requests per second
	LoginConcurrency int64 // max concurrent login attempts
}

// Server represents the HTTP server.
type Server struct {
	store      ContactStore
	cfg        Config
	version    string
	baseURL    string
	auth       *Auth
	webHandler *web.Handler
	staticFS   fs.FS // embedded static files
}

// New creates a new Server instance.
// ss is the session store for persistent sessions.
func New(st ContactStore, val Validator, ss SessionStore, cfg Config) (*Server, error) {
	auth, err := NewAuth(cfg.UsersFile, cfg.LoginTTL, ss)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	staticContent, err := web.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}

	webHandler, err := web.New(st, auth, val, web.Config{BaseURL: cfg.BaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create web handler: %w", err)
	}

	return &Server{
		store:      st,
		cfg:        cfg,
		version:    cfg.Version,
		baseURL:    cfg.BaseURL,
		auth:       auth,
		webHandler: webHandler,
		staticFS:   staticContent,
	}, nil
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.handler(),
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	// start users file watcher if enabled
	if s.cfg.UsersHotReload {
		if err := s.auth.StartWatcher(ctx); err != nil {
			return fmt.Errorf("failed to start users file watcher: %w", err)
		}
		log.Printf("[INFO] users file hot-reload enabled")
	}

	// start session cleanup goroutine
	s.auth.StartCleanup(ctx)

	// graceful shutdown
	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] shutdown error: %v", err)
		}
	}()

	log.Printf("[DEBUG] started server on %s", s.cfg.Address)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// handler returns the HTTP handler, wrapping routes with base URL support if configured.
func (s *Server) handler() http.Handler {
	routes := s.routes()
	if s.baseURL == "" {
		return routes
	}
	mux := http.NewServeMux()
	// redirect /base to /base/
	mux.HandleFunc(s.baseURL, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.baseURL+"/", http.StatusMovedPermanently)
	})
	// strip prefix for all routes under base URL
	mux.Handle(s.baseURL+"/", http.StripPrefix(s.baseURL, routes))
	return mux
}

// routes configures and returns the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	// global middleware (applies to all routes)
	router.Use(
		rest.Recoverer(log.Default()),
		rest.RealIP, // must be before Throttle to rate-limit by real client IP
		rest.Throttle(s.requestsPerSec()),
		rest.Trace,
		rest.SizeLimit(s.bodySizeLimit()),
		rest.AppInfo("conndb", "arupa444", s.version),
		rest.Ping,
	)

	// public routes: listing is read-only for anonymous visitors, and UI
	// preferences (theme, sort) are per-browser cookies anyone can set
	router.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(s.staticFS))))
	s.webHandler.Register(router)

	// login/logout with stricter throttle on login to prevent brute-force
	s.webHandler.RegisterAuth(router)
	s.webHandler.RegisterLogin(router, rest.Throttle(s.loginConcurrency()))

	// protected routes (session auth)
	router.Group().Route(func(protected *routegroup.Bundle) {
		protected.Use(s.auth.SessionAuth(s.url("/login")))
		s.webHandler.RegisterProtected(protected)
	})

	return router
}

// bodySizeLimit returns the configured body size limit, or default 1MB if not set.
func (s *Server) bodySizeLimit() int64 {
	if s.cfg.BodySizeLimit > 0 {
		return s.cfg.BodySizeLimit
	}
	return 1024 * 1024 // 1MB default
}

// requestsPerSec returns the configured requests per second limit, or default 1000 if not set.
func (s *Server) requestsPerSec() int64 {
	if s.cfg.RequestsPerSec > 0 {
		return s.cfg.RequestsPerSec
	}
	return 1000 // default
}

// loginConcurrency returns the configured login concurrency limit, or default 5 if not set.
func (s *Server) loginConcurrency() int64 {
	if s.cfg.LoginConcurrency > 0 {
		return s.cfg.LoginConcurrency
	}
	return 5 // default
}

// url returns a URL path with the base URL prefix.
func (s *Server) url(path string) string {
	return s.baseURL + path
}
