// ABOUTME: Gateway wires storage, tools, provider and the turn coordinator behind an HTTP server
// ABOUTME: Manages the HTTP listener lifecycle, CORS, bearer auth and per-conversation turn locks

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/2389/socrates-gateway/internal/auth"
	"github.com/2389/socrates-gateway/internal/builtins"
	"github.com/2389/socrates-gateway/internal/config"
	"github.com/2389/socrates-gateway/internal/llm/openai"
	"github.com/2389/socrates-gateway/internal/llm/scripted"
	"github.com/2389/socrates-gateway/internal/packs"
	"github.com/2389/socrates-gateway/internal/store"
	"github.com/2389/socrates-gateway/internal/turn"
	"github.com/2389/socrates-gateway/internal/turnlock"
)

// Gateway owns the components needed to run turns and serve them over HTTP.
type Gateway struct {
	config      *config.Config
	store       store.Store
	registry    *packs.Registry
	coordinator *turn.Coordinator
	locks       *turnlock.Guard
	httpServer  *http.Server
	logger      *slog.Logger
}

// Option customizes New.
type Option func(*options)

type options struct {
	provider turn.Provider
	store    store.Store
	now      func() time.Time
}

// WithProvider replaces the provider selected by provider.kind.
func WithProvider(p turn.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithStore replaces the store selected by database.driver.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithClock sets the clock used by the clock tool pack.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// initStore opens the configured store.
func initStore(cfg *config.Config) (store.Store, error) {
	if cfg.Database.Driver == "memory" {
		return store.NewMemoryStore(), nil
	}
	s, err := store.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

// initProvider builds the provider named by provider.kind.
func initProvider(cfg *config.Config, logger *slog.Logger) (turn.Provider, error) {
	switch cfg.Provider.Kind {
	case config.ProviderOpenAI:
		p, err := openai.New(openai.Config{
			APIKey:     cfg.Provider.APIKey,
			BaseURL:    cfg.Provider.BaseURL,
			MaxRetries: 2,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating openai provider: %w", err)
		}
		return p, nil
	case config.ProviderScripted:
		return scripted.New(40*time.Millisecond, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}
}

// registerBuiltinPacks registers all builtin tool packs with the registry.
func registerBuiltinPacks(registry *packs.Registry, s store.NoteStore, now func() time.Time) error {
	if err := registry.RegisterBuiltinPack(builtins.NotesPack(s)); err != nil {
		return fmt.Errorf("registering notes pack: %w", err)
	}
	if err := registry.RegisterBuiltinPack(builtins.ClockPack(now)); err != nil {
		return fmt.Errorf("registering clock pack: %w", err)
	}
	return nil
}

// New creates a Gateway from cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	persona, err := cfg.ResolvePersona()
	if err != nil {
		return nil, fmt.Errorf("loading persona: %w", err)
	}
	model := cfg.Provider.Model
	if persona.Model != "" {
		model = persona.Model
	}

	provider := o.provider
	if provider == nil {
		if provider, err = initProvider(cfg, logger); err != nil {
			return nil, err
		}
	}

	s := o.store
	if s == nil {
		if s, err = initStore(cfg); err != nil {
			return nil, err
		}
	}

	registry := packs.NewRegistry(logger)
	if err := registerBuiltinPacks(registry, s, o.now); err != nil {
		_ = s.Close()
		return nil, err
	}

	coordinator := turn.NewCoordinator(provider, registry, s, turn.Options{
		Persona:     turn.Persona{Text: persona.Text},
		Model:       model,
		Usage:       s,
		SaveTimeout: cfg.Turns.SaveTimeout,
	}, logger)

	gw := &Gateway{
		config:      cfg,
		store:       s,
		registry:    registry,
		coordinator: coordinator,
		locks:       turnlock.New(),
		logger:      logger.With("component", "gateway"),
	}

	handler, err := gw.buildHandler()
	if err != nil {
		gw.locks.Close()
		_ = s.Close()
		return nil, err
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// buildHandler registers routes and wraps them with auth and CORS.
func (g *Gateway) buildHandler() (http.Handler, error) {
	api := http.NewServeMux()
	g.registerAPIRoutes(api)

	var apiHandler http.Handler = api
	if g.config.Auth.JWTSecret != "" {
		verifier, err := auth.NewJWTVerifier([]byte(g.config.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating HTTP JWT verifier: %w", err)
		}
		apiHandler = auth.HTTPAuthMiddleware(verifier, g.logger)(api)
		g.logger.Info("HTTP auth middleware enabled")
	} else {
		g.logger.Warn("HTTP auth disabled - no jwt_secret configured")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.Handle("/api/", apiHandler)

	if len(g.config.Server.AllowedOrigins) == 0 {
		return mux, nil
	}

	c := cors.New(cors.Options{
		AllowedOrigins: g.config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(mux), nil
}

// Handler returns the HTTP handler served by Run.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Store returns the gateway's store.
func (g *Gateway) Store() store.Store {
	return g.store
}

// Tools lists the registered tool packs.
func (g *Gateway) Tools() []packs.BuiltinPackInfo {
	return g.registry.ListBuiltinPacks()
}

// Run serves HTTP until ctx is canceled or the server fails, then shuts down.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.httpServer.Addr, err)
	}
	g.logger.Info("starting gateway", "http_addr", ln.Addr().String(), "model", g.coordinator.Model())

	errCh := make(chan error, 1)
	go func() {
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case err, ok := <-errCh:
		if ok {
			g.logger.Error("server error", "error", err)
			serverErr = err
		}
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, waits for running turns and releases the
// store. If turns are still running when ctx ends the store is left open so
// their saves can finish.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if err := g.locks.Drain(ctx); err != nil {
		g.logger.Warn("turns still running, leaving store open", "error", err)
		errs = appendCloseError(errs, "draining turns", err)
		return errors.Join(errs...)
	}
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}
