package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpadapter "github.com/billed-app/billed/internal/adapters/http"
	"github.com/billed-app/billed/internal/adapters/web"
	"github.com/billed-app/billed/internal/config"
	"github.com/billed-app/billed/internal/core/domain"
	"github.com/billed-app/billed/internal/core/ports"
	"github.com/billed-app/billed/internal/core/usecase"
	"github.com/billed-app/billed/internal/infrastructure/export/xlsx"
	"github.com/billed-app/billed/internal/infrastructure/queue/nats"
	"github.com/billed-app/billed/internal/infrastructure/repository/postgres"
	"github.com/billed-app/billed/internal/infrastructure/resilience"
	"github.com/billed-app/billed/internal/infrastructure/session"
	"github.com/billed-app/billed/internal/infrastructure/storage/localfs"
	"github.com/billed-app/billed/internal/infrastructure/store/httpstore"
	"github.com/billed-app/billed/internal/infrastructure/store/memstore"
	"github.com/billed-app/billed/internal/observability/metrics"
)

// API is the bills store service: postgres records, proof files, event publishing.
type API struct {
	Config  config.Config
	Handler http.Handler
	Metrics *metrics.HTTPServerMetrics

	closeFn func()
}

func NewAPI(ctx context.Context, cfg config.Config, logger *slog.Logger) (*API, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewBillRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("bills_schema_ready")

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: newExecutor(cfg, "api", httpMetrics),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	billsUC := usecase.NewBillStoreUseCase(repo, storage, queue, cfg.PublicFileBaseURL)
	exportUC := usecase.NewBillExportUseCase(repo, xlsx.NewWriter())

	handler, err := httpadapter.NewRouter(cfg, billsUC, exportUC, httpMetrics).Handler()
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("build api router: %w", err)
	}

	return &API{
		Config:  cfg,
		Handler: handler,
		Metrics: httpMetrics,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *API) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Worker consumes bill events and keeps the per-status gauges current.
type Worker struct {
	Config  config.Config
	Queue   ports.EventQueue
	Audit   *usecase.BillAuditUseCase
	Metrics *metrics.WorkerMetrics

	logger  *slog.Logger
	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Worker, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewBillRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	return &Worker{
		Config:  cfg,
		Queue:   queue,
		Audit:   usecase.NewBillAuditUseCase(repo, logger),
		Metrics: metrics.NewWorkerMetrics("worker"),
		logger:  logger,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.Queue.SubscribeBillEvents(ctx, w.handleEvent)
}

func (w *Worker) handleEvent(ctx context.Context, event domain.BillEvent) error {
	const service = "worker"
	if !event.OccurredAt.IsZero() {
		w.Metrics.ObserveQueueLag(service, time.Since(event.OccurredAt))
	}

	w.Metrics.StartEvent()
	started := time.Now()
	handleCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	counts, err := w.Audit.Handle(handleCtx, event)
	w.Metrics.FinishEvent(service, event.Type, time.Since(started), err)
	if err != nil {
		return err
	}

	byStatus := make(map[string]int, len(counts))
	for status, n := range counts {
		byStatus[string(status)] = n
	}
	w.Metrics.SetBillsByStatus(service, byStatus)
	return nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// Web is the employee-facing application.
type Web struct {
	Config  config.Config
	Server  *web.Server
	Metrics *metrics.HTTPServerMetrics
}

func NewWeb(cfg config.Config, logger *slog.Logger) (*Web, error) {
	httpMetrics := metrics.NewHTTPServerMetrics("web")

	storeFor, err := newStoreFactory(cfg, httpMetrics, logger)
	if err != nil {
		return nil, err
	}

	server, err := web.NewServer(storeFor, session.NewRegistry(cfg.SessionTTL), web.Options{
		AwaitPersist: cfg.AwaitPersist,
		Metrics:      httpMetrics,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init web server: %w", err)
	}
	return &Web{Config: cfg, Server: server, Metrics: httpMetrics}, nil
}

// SweepLoop expires idle sessions until ctx is cancelled.
func (w *Web) SweepLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Server.SweepSessions()
		}
	}
}

func newStoreFactory(cfg config.Config, httpMetrics *metrics.HTTPServerMetrics, logger *slog.Logger) (web.StoreFactory, error) {
	switch cfg.StoreMode {
	case config.StoreModeMock:
		store, err := memstore.New()
		if err != nil {
			return nil, fmt.Errorf("load mocked store: %w", err)
		}
		logger.Warn("store_mode_mock", "detail", "bills are served from embedded fixtures")
		return func(domain.User) ports.BillStore { return store }, nil
	default:
		client := httpstore.New(cfg.StoreURL, httpstore.Options{
			Timeout:            cfg.StoreTimeout,
			ResilienceExecutor: newExecutor(cfg, "web", httpMetrics),
		})
		return func(user domain.User) ports.BillStore { return client.ForUser(user.Email) }, nil
	}
}

func newExecutor(cfg config.Config, service string, httpMetrics *metrics.HTTPServerMetrics) *resilience.Executor {
	if httpMetrics == nil {
		return resilience.NewExecutor(ResilienceConfig(cfg))
	}
	return resilience.NewExecutorWithHooks(ResilienceConfig(cfg), resilience.Hooks{
		OnRetry: func(operation string, _ int) {
			httpMetrics.RecordStoreRetry(service, operation)
		},
		OnStateChange: func(operation, _, to string) {
			httpMetrics.RecordBreakerTransition(service, operation, to)
		},
	})
}

func ResilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.RetryMaxAttempts,
		RetryInitialBackoff:     cfg.RetryInitialBackoff,
		RetryMaxBackoff:         cfg.RetryMaxBackoff,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
	}
}
