// Package app wires together the engine's providers, persistence layer, and
// pipeline scheduler into a single runnable application, mirroring the
// teacher's composition-root pattern: a staged [New] constructor that builds
// each subsystem in dependency order, tracks per-subsystem teardown in a
// closers list, and a [Run]/[Shutdown] pair the command entrypoint drives.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liveink/liveink/internal/agents"
	"github.com/liveink/liveink/internal/config"
	"github.com/liveink/liveink/internal/docstore"
	"github.com/liveink/liveink/internal/eventbus"
	"github.com/liveink/liveink/internal/health"
	"github.com/liveink/liveink/internal/historystore"
	"github.com/liveink/liveink/internal/mcp"
	"github.com/liveink/liveink/internal/mcp/mcphost"
	"github.com/liveink/liveink/internal/mcp/tools/fileio"
	"github.com/liveink/liveink/internal/observe"
	"github.com/liveink/liveink/internal/pipeline"
	"github.com/liveink/liveink/internal/retrieval"
	"github.com/liveink/liveink/internal/router"
	"github.com/liveink/liveink/internal/statestore"
	"github.com/liveink/liveink/internal/stateupdater"
	"github.com/liveink/liveink/internal/storage"
	"github.com/liveink/liveink/internal/workspace"
	"github.com/liveink/liveink/pkg/provider/embeddings"
	"github.com/liveink/liveink/pkg/provider/llm"
)

// Providers bundles the model-backed services the application was configured
// to use. Each field may be nil if the corresponding entry in
// [config.ProvidersConfig] named an unregistered provider; New degrades
// gracefully where it can (no Embeddings means no retrieval) and fails where
// it can't (no LLM means no editing agent can ever run).
type Providers struct {
	LLM         llm.Provider
	Lightweight llm.Provider
	Embeddings  embeddings.Provider
}

// App is the fully wired engine: an optional Postgres-backed persistence
// layer, an event bus broadcasting document/session updates to connected
// clients, and a pipeline scheduler processing inbound commands and
// transcript fragments.
type App struct {
	cfg *config.Config

	pool      *pgxpool.Pool
	doc       *docstore.Store
	state     *statestore.Store
	history   *historystore.Store
	retrieval *retrieval.Store
	events    *eventbus.Bus
	mcpHost   mcp.Host
	updater   *stateupdater.Updater
	rtr       *router.Router
	scheduler *pipeline.Scheduler

	httpServer *http.Server

	closers  []func() error
	stopOnce sync.Once
}

// Option customises App construction, primarily to inject test doubles in
// place of the Postgres-backed and MCP subsystems New would otherwise build.
type Option func(*App)

// WithMCPHost overrides the MCP host New would otherwise construct from
// cfg.MCP.Servers, bypassing server registration entirely.
func WithMCPHost(h mcp.Host) Option {
	return func(a *App) { a.mcpHost = h }
}

// WithEventBus overrides the event bus New would otherwise construct.
func WithEventBus(b *eventbus.Bus) Option {
	return func(a *App) { a.events = b }
}

// New builds the application: opens the Postgres pool, constructs the
// persistence and routing layers, optionally registers MCP tool servers, and
// assembles the pipeline scheduler. If any stage fails, subsystems already
// opened are torn down before New returns.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: providers.LLM is required")
	}
	if providers.Lightweight == nil {
		providers.Lightweight = providers.LLM
	}

	a := &App{cfg: cfg, doc: docstore.New("")}
	for _, opt := range opts {
		opt(a)
	}

	if a.events == nil {
		a.events = eventbus.New()
	}

	if err := a.initMemory(ctx, cfg); err != nil {
		a.runClosers()
		return nil, err
	}

	if a.mcpHost == nil {
		host, err := a.initMCP(ctx, cfg)
		if err != nil {
			a.runClosers()
			return nil, err
		}
		a.mcpHost = host
	}

	a.rtr = router.New(providers.Lightweight)

	if a.state != nil && a.history != nil {
		a.updater = stateupdater.New(a.state, a.history, providers.Lightweight, a.events, cfg.Pipeline)
	}

	metrics := observe.DefaultMetrics()

	deps := &agents.Deps{
		Doc:        a.doc,
		State:      a.state,
		History:    a.history,
		Retrieval:  a.retrieval,
		Embeddings: providers.Embeddings,
		Coder:      providers.LLM,
		Flash:      providers.Lightweight,
		Events:     a.events,
		Updater:    a.updater,
		MCP:        a.mcpHost,
		Cfg:        cfg.Pipeline,
		Metrics:    metrics,
	}

	var schedulerOpts []pipeline.Option
	if cfg.Workspace.Path != "" {
		schedulerOpts = append(schedulerOpts, pipeline.WithWorkspace(workspace.New(cfg.Workspace.Path)))
	}
	a.scheduler = pipeline.New(deps, a.rtr, a.events, cfg.Pipeline, schedulerOpts...)

	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/", observe.Middleware(metrics)(a.events.Handler()))
		health.New(a.healthCheckers()...).Register(mux)
		a.httpServer = &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}
	}

	return a, nil
}

// initMemory opens the Postgres pool and builds the three stores that share
// it, unless cfg.Memory.PostgresDSN is empty — in which case the engine runs
// with no durable state, history, or retrieval, and documents and chat
// history live only as long as the process.
func (a *App) initMemory(ctx context.Context, cfg *config.Config) error {
	if cfg.Memory.PostgresDSN == "" {
		return nil
	}

	pool, err := storage.NewPool(ctx, cfg.Memory.PostgresDSN, cfg.Memory.EmbeddingDimensions)
	if err != nil {
		return fmt.Errorf("app: open postgres pool: %w", err)
	}
	a.pool = pool
	a.addCloser(func() error { pool.Close(); return nil })

	a.state = statestore.New(pool)
	a.history = historystore.New(pool)
	a.retrieval = retrieval.New(pool, cfg.Memory.EmbeddingDimensions, cfg.Pipeline.RetrievalTopK)
	return nil
}

// initMCP registers every configured MCP tool server and runs an initial
// calibration pass so the search agent's first tool-enabled turn already has
// real latency-derived budget tiers rather than the declared defaults.
func (a *App) initMCP(ctx context.Context, cfg *config.Config) (mcp.Host, error) {
	if len(cfg.MCP.Servers) == 0 && cfg.MCP.SandboxDir == "" {
		return nil, nil
	}

	host := mcphost.New()
	for _, server := range cfg.MCP.Servers {
		sc := mcp.ServerConfig{
			Name:      server.Name,
			Transport: mcp.Transport(server.Transport),
			Command:   server.Command,
			URL:       server.URL,
			Env:       server.Env,
		}
		if err := host.RegisterServer(ctx, sc); err != nil {
			host.Close()
			return nil, fmt.Errorf("app: register mcp server %q: %w", server.Name, err)
		}
	}

	if cfg.MCP.SandboxDir != "" {
		for _, t := range fileio.NewTools(cfg.MCP.SandboxDir) {
			bt := mcphost.BuiltinTool{
				Definition:  t.Definition,
				Handler:     t.Handler,
				DeclaredP50: t.DeclaredP50,
				DeclaredMax: t.DeclaredMax,
			}
			if err := host.RegisterBuiltin(bt); err != nil {
				host.Close()
				return nil, fmt.Errorf("app: register builtin tool %q: %w", t.Definition.Name, err)
			}
		}
	}

	if err := host.Calibrate(ctx); err != nil {
		host.Close()
		return nil, fmt.Errorf("app: calibrate mcp tools: %w", err)
	}

	a.addCloser(host.Close)
	return host, nil
}

func (a *App) addCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}

// healthCheckers builds the readiness checks appropriate for however this
// App was wired: a Postgres ping when the persistence layer is enabled, and
// an MCP host liveness check whenever an MCP host exists, including one that
// carries only built-in tools.
func (a *App) healthCheckers() []health.Checker {
	var checkers []health.Checker
	if a.pool != nil {
		checkers = append(checkers, health.Checker{
			Name: "postgres",
			Check: func(ctx context.Context) error {
				return a.pool.Ping(ctx)
			},
		})
	}
	if a.mcpHost != nil {
		checkers = append(checkers, health.Checker{
			Name: "mcp",
			Check: func(ctx context.Context) error {
				_ = a.mcpHost.AvailableTools(mcp.BudgetFast)
				return nil
			},
		})
	}
	return checkers
}

// Run starts the pipeline scheduler and, if configured with a listen
// address, the event-bus HTTP server. It blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.scheduler.Run(ctx)
	}()

	var serveErr error
	if a.httpServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr = err
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			a.httpServer.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	if serveErr != nil {
		return serveErr
	}
	return ctx.Err()
}

// Scheduler exposes the wired pipeline scheduler so a transport layer (HTTP
// handlers, a CLI REPL, a desktop shell) can feed it commands and transcript
// fragments via its exported Commands and Fragments channels.
func (a *App) Scheduler() *pipeline.Scheduler { return a.scheduler }

// EventBus exposes the wired event bus so a transport layer can mount its
// [eventbus.Bus.Handler] or subscribe a client directly.
func (a *App) EventBus() *eventbus.Bus { return a.events }

// Shutdown stops the scheduler and tears down every subsystem New opened, in
// reverse order, best-effort within ctx's deadline. Safe to call multiple
// times; only the first call has effect.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		close(a.scheduler.Commands)

		for i := len(a.closers) - 1; i >= 0; i-- {
			if ctx.Err() != nil {
				shutdownErr = ctx.Err()
				return
			}
			if err := a.closers[i](); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})
	return shutdownErr
}

// runClosers tears down whatever subsystems New has opened so far, used on a
// failed construction path where no App is ever returned to the caller.
func (a *App) runClosers() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
