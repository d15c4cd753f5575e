// Package server wires the directory, catalogue, dispatcher and scheduler behind the HTTP API
// and the optional NATS run transport.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/opspawn/agentkit/internal/config"
	"github.com/opspawn/agentkit/pkg/bootstrap"
	"github.com/opspawn/agentkit/pkg/catalogue"
	"github.com/opspawn/agentkit/pkg/commsutil"
	"github.com/opspawn/agentkit/pkg/db"
	"github.com/opspawn/agentkit/pkg/directory"
	"github.com/opspawn/agentkit/pkg/dispatcher"
	"github.com/opspawn/agentkit/pkg/events"
	"github.com/opspawn/agentkit/pkg/outbound"
	"github.com/opspawn/agentkit/pkg/scheduler"
	"github.com/opspawn/agentkit/pkg/tools"
)

const logPrefix = "server:server"

// DeliveryStore reads the persisted delivery log.
type DeliveryStore interface {
	ListDeliveries(ctx context.Context, params db.ListDeliveriesParams) ([]db.DeliveryRecord, error)
}

// Server is the agentkit orchestrator.
type Server struct {
	cfg        *config.Config
	dir        *directory.Directory
	cat        *catalogue.Catalogue
	disp       *dispatcher.Dispatcher
	sched      *scheduler.Scheduler
	deliveries DeliveryStore
	dbPing     func(ctx context.Context) error
	nc         *comms.Conn
	subs       []*comms.Subscription
	inflight   *errgroup.Group
	startedAt  time.Time
}

// Params holds parameters for New. Deliveries, DBPing and Comms are optional.
type Params struct {
	Config     *config.Config
	Directory  *directory.Directory
	Catalogue  *catalogue.Catalogue
	Dispatcher *dispatcher.Dispatcher
	Scheduler  *scheduler.Scheduler
	Deliveries DeliveryStore
	DBPing     func(ctx context.Context) error
	Comms      *comms.Conn
}

// New creates a Server from already constructed components.
func New(params Params) *Server {
	return &Server{
		cfg:        params.Config,
		dir:        params.Directory,
		cat:        params.Catalogue,
		disp:       params.Dispatcher,
		sched:      params.Scheduler,
		deliveries: params.Deliveries,
		dbPing:     params.DBPing,
		nc:         params.Comms,
		startedAt:  time.Now().UTC(),
	}
}

// Handler returns the HTTP handler with every route and the request logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHome())
	mux.HandleFunc("GET /tools/{name}", s.handleToolDetail())
	mux.HandleFunc("GET /tools/{name}/openapi.json", s.handleToolOpenAPI())
	mux.HandleFunc("GET /tools/{name}/docs", s.handleToolDocs())
	mux.HandleFunc("GET /health", s.handleHealth())
	mux.HandleFunc("GET /ready", handleReady)

	mux.HandleFunc("POST /v1/agents/register", s.handleRegisterAgent())
	mux.HandleFunc("GET /v1/agents", s.handleListAgents())
	mux.HandleFunc("GET /v1/agents/{agentId}", s.handleGetAgent())
	mux.HandleFunc("DELETE /v1/agents/{agentId}", s.handleRemoveAgent())
	mux.HandleFunc("POST /v1/agents/{agentId}/run", s.handleRun())
	mux.HandleFunc("GET /v1/agents/{agentId}/deliveries", s.handleListDeliveries())
	mux.HandleFunc("GET /v1/tools", s.handleListTools())
	mux.HandleFunc("POST /v1/tools/external", s.handleRegisterExternalTool())

	return withRequestLogging(mux)
}

// Run loads config, sets up logging and serves until SIGINT or SIGTERM.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	setupLogging(cfg)

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Serve(ctx, cfg)
}

func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Serve builds every component from cfg, serves HTTP (and NATS when configured) and shuts
// down gracefully once ctx is done.
func Serve(ctx context.Context, cfg *config.Config) error {
	slog.Info(fmt.Sprintf("%s - Starting agentkit", logPrefix))

	dir := directory.New()
	cat := catalogue.New()

	// Step 1: Built-in tools
	if cfg.EnableBuiltinTools {
		err := tools.RegisterBuiltins(cat, tools.BuiltinParams{
			OpenAIAPIKey:    cfg.OpenAIAPIKey,
			AnthropicAPIKey: cfg.AnthropicAPIKey,
			LLMTimeout:      cfg.CallTimeout,
		})
		if err != nil {
			return err
		}
	}

	// Step 2: Bootstrap seed
	seed, err := bootstrap.LoadSeedConfig(cfg.BootstrapFile)
	if err != nil {
		return fmt.Errorf("%s - failed to load bootstrap seed: %w", logPrefix, err)
	}
	if _, err := bootstrap.Apply(seed, dir, cat); err != nil {
		return fmt.Errorf("%s - failed to apply bootstrap seed: %w", logPrefix, err)
	}

	publishers := []events.EventPublisher{}
	params := Params{Config: cfg, Directory: dir, Catalogue: cat}

	// Step 3: COMMS (optional)
	if cfg.COMMSEnabled() {
		nc, err := commsutil.Connect(commsutil.ConnectParams{URL: cfg.COMMSURL, Name: cfg.COMMSName})
		if err != nil {
			return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
		}
		defer nc.Close()
		params.Comms = nc
		publishers = append(publishers, events.NewCommsPublisher(nc, &events.CommsPublisherOpts{DeliverySubject: cfg.DeliverySubject}))
		slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.COMMSURL))
	}

	// Step 4: Delivery log (optional)
	if cfg.DeliveryLogEnabled() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		defer pool.Close()

		if cfg.RunMigrations {
			migrations, err := db.LoadMigrations(cfg.MigrationPath)
			if err != nil {
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if err := db.RunMigrations(ctx, pool, migrations); err != nil {
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}

		repo := db.NewRepository(pool)
		publishers = append(publishers, repo)
		params.Deliveries = repo
		params.DBPing = func(ctx context.Context) error { return db.Ping(ctx, pool) }
	}

	// Step 5: Scheduler and dispatcher share one outbound client
	client := outbound.NewClient(outbound.NewClientParams{Timeout: cfg.CallTimeout})
	sched := scheduler.New(scheduler.Params{
		Poster:    client,
		Publisher: events.NewMultiPublisher(publishers...),
		Workers:   cfg.SchedulerWorkers,
		QueueSize: cfg.SchedulerQueue,
	})
	sched.Start()
	params.Scheduler = sched
	params.Dispatcher = dispatcher.NewDispatcher(dispatcher.NewDispatcherParams{
		Directory: dir,
		Catalogue: cat,
		Caller:    client,
		Scheduler: sched,
	})

	s := New(params)

	// Step 6: COMMS subscriptions
	if s.nc != nil {
		if err := s.subscribe(ctx); err != nil {
			s.unsubscribe()
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			_ = sched.Close(closeCtx)
			return err
		}
	}

	// Step 7: HTTP
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info(fmt.Sprintf("%s - agentkit is ready (%d agents, %d tools)", logPrefix, dir.Len(), cat.Len()))

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info(fmt.Sprintf("%s - Shutdown requested", logPrefix))
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("%s - HTTP server error: %w", logPrefix, err)
		}
	}

	// Graceful shutdown: stop intake first, then drain deferred deliveries.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	s.unsubscribe()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
	}
	if err := sched.Close(shutdownCtx); err != nil {
		slog.Warn(fmt.Sprintf("%s - scheduler did not drain: %v", logPrefix, err))
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			slog.Warn(fmt.Sprintf("%s - NATS drain: %v", logPrefix, err))
		}
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return runErr
}
