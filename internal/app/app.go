package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	commonmetrics "github.com/Younus004/wisdom/common/metrics"
	"github.com/Younus004/wisdom/common/telemetry"
	"github.com/Younus004/wisdom/internal/auth"
	"github.com/Younus004/wisdom/internal/cache"
	"github.com/Younus004/wisdom/internal/config"
	"github.com/Younus004/wisdom/internal/db"
	"github.com/Younus004/wisdom/internal/document"
	"github.com/Younus004/wisdom/internal/enquiry"
	"github.com/Younus004/wisdom/internal/events"
	"github.com/Younus004/wisdom/internal/fees"
	"github.com/Younus004/wisdom/internal/health"
	"github.com/Younus004/wisdom/internal/kafka"
	"github.com/Younus004/wisdom/internal/ledger"
	"github.com/Younus004/wisdom/internal/messaging"
	"github.com/Younus004/wisdom/internal/metrics"
	"github.com/Younus004/wisdom/internal/middleware"
	"github.com/Younus004/wisdom/internal/sequence"
	"github.com/Younus004/wisdom/internal/store"
	"github.com/Younus004/wisdom/internal/store/memstore"
	"github.com/Younus004/wisdom/internal/store/pgstore"
	"github.com/Younus004/wisdom/internal/student"
	"github.com/Younus004/wisdom/internal/validation"
	"github.com/Younus004/wisdom/internal/visitor"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
)

type App struct {
	config    *config.Config
	router    chi.Router
	server    *http.Server
	logger    *slog.Logger
	telemetry *telemetry.Telemetry
	publisher events.Publisher
	closers   []closer
}

type closer struct {
	name string
	fn   func() error
}

type options struct {
	fs  afero.Fs
	now func() time.Time
}

type Option func(*options)

// WithFilesystem replaces the OS filesystem used for generated documents.
func WithFilesystem(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New wires storage, documents, events and the HTTP routes from cfg.
// Resources opened before a failure are released before returning.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	o := options{fs: afero.NewOsFs(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	logger.Info("initializing application", "env", cfg.Env, "storage", cfg.Storage.Driver, "events", cfg.Events.Driver)

	a := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
	}

	if err := a.build(ctx, o); err != nil {
		a.abort(ctx)
		return nil, err
	}

	logger.Info("application initialized successfully")
	return a, nil
}

func (a *App) build(ctx context.Context, o options) error {
	cfg := a.config
	logger := a.logger
	loc := cfg.Location()

	tel, err := telemetry.Init(ctx, ServiceName, Version, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		ExportInterval: time.Duration(cfg.Telemetry.ExportInterval) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.telemetry = tel

	meter := otel.Meter(ServiceName)
	m, err := metrics.New(meter)
	if err != nil {
		return fmt.Errorf("failed to initialize domain metrics: %w", err)
	}

	pingers := map[string]health.Pinger{}

	st, err := a.openStore(ctx, tel.Metrics)
	if err != nil {
		return err
	}
	pingers["store"] = st

	publisher, err := newPublisher(cfg.Events, logger, tel.Metrics.Messaging)
	if err != nil {
		return err
	}
	a.publisher = publisher

	var c cache.Cache = cache.NewMemory()
	if cfg.Redis.Enabled {
		client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			return err
		}
		r := cache.NewRedis(client, cfg.Redis.KeyPrefix)
		a.onClose("redis", r.Close)
		pingers["redis"] = r
		c = r
	}
	dueCache := fees.NewDueListCache(c, time.Duration(cfg.Redis.DueListTTL)*time.Second)

	receipts, err := document.NewArchive(o.fs, cfg.Storage.ReceiptsDir)
	if err != nil {
		return fmt.Errorf("receipts archive: %w", err)
	}
	forms, err := document.NewArchive(o.fs, cfg.Storage.FormsDir)
	if err != nil {
		return fmt.Errorf("registration forms archive: %w", err)
	}
	renderer := document.NewRenderer(o.fs, document.School{
		Name:     cfg.School.Name,
		Address:  cfg.School.Address,
		LogoPath: cfg.School.LogoPath,
	}, loc, document.WithClock(o.now))

	txOpts := store.TxOptions{MaxAttempts: cfg.Storage.TxMaxAttempts}
	seq := sequence.New(st, map[string]int64{
		sequence.ReceiptNo:   cfg.Sequences.ReceiptFloor,
		sequence.BillNo:      cfg.Sequences.BillFloor,
		sequence.AdmissionNo: cfg.Sequences.AdmissionFloor,
	}, txOpts, m)
	ldg := ledger.New(st, txOpts, m)
	v := validation.New()
	students := student.NewRepository(st)

	studentService := student.NewService(student.Deps{
		Repository:       students,
		Sequence:         seq,
		Validator:        v,
		Renderer:         renderer,
		Forms:            forms,
		Publisher:        publisher,
		DueList:          dueCache,
		Metrics:          m,
		Logger:           logger,
		Now:              o.now,
		AdmissionNoWidth: cfg.Sequences.AdmissionNoWidth,
	})
	feeService := fees.NewService(fees.Deps{
		Store:     st,
		Students:  students,
		Ledger:    ldg,
		Sequence:  seq,
		Validator: v,
		Renderer:  renderer,
		Receipts:  receipts,
		DueCache:  dueCache,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,
		Now:       o.now,
		Location:  loc,
	})
	enquiryService := enquiry.NewService(st, v, publisher, m, logger,
		enquiry.WithClock(o.now),
		enquiry.WithLocation(loc),
		enquiry.WithTxOptions(txOpts),
	)
	visitorService := visitor.NewService(st, students, v, publisher, m, logger, o.now, loc)

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TTL())
	authService, err := auth.NewService(auth.Credentials{
		Login:        cfg.Auth.Login,
		Password:     cfg.Auth.Password,
		PasswordHash: cfg.Auth.PasswordHash,
	}, tokens)
	if err != nil {
		return err
	}
	authHandler := auth.NewHandler(authService, v, logger, auth.CookieOptions{Secure: cfg.Auth.SecureCookie})

	a.router.Use(chimw.RequestID)
	a.router.Use(chimw.RealIP)
	a.router.Use(middleware.RequestLogger(logger))
	a.router.Use(chimw.Recoverer)
	a.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	// Health endpoints (no auth required)
	healthHandler := health.NewHandler(pingers, tel.Metrics.Health, logger)
	if err := tel.Metrics.Health.Register(meter, ServiceName, Version, cfg.Env, healthHandler.Dependencies()...); err != nil {
		logger.Warn("failed to register health metrics", "error", err)
	}
	healthHandler.RegisterRoutes(a.router)
	authHandler.RegisterRoutes(a.router)

	a.router.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(authService, logger))
		student.NewHandler(studentService, logger).RegisterRoutes(r)
		fees.NewHandler(feeService, logger).RegisterRoutes(r)
		enquiry.NewHandler(enquiryService, logger).RegisterRoutes(r)
		visitor.NewHandler(visitorService, logger).RegisterRoutes(r)
	})

	return nil
}

func (a *App) openStore(ctx context.Context, m *commonmetrics.Metrics) (store.Store, error) {
	if a.config.Storage.Driver != config.StoragePostgres {
		a.logger.Warn("using in-memory storage, records are lost on restart")
		return memstore.New(), nil
	}

	database, err := db.New(ctx, a.config.Database, a.logger)
	if err != nil {
		return nil, err
	}
	a.onClose("database", func() error { return db.Close(database) })

	if err := m.Database.RegisterDB(database.DB, otel.Meter(ServiceName)); err != nil {
		a.logger.Warn("failed to register connection pool metrics", "error", err)
	}

	pg := pgstore.New(database, m.Database)
	if err := pg.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return pg, nil
}

// newPublisher picks the event transport. Events are advisory, so the "none"
// driver is a valid production setting.
func newPublisher(cfg config.EventsConfig, logger *slog.Logger, m *commonmetrics.MessagingMetrics) (events.Publisher, error) {
	switch cfg.Driver {
	case config.EventsNATS:
		p, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger, m)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize NATS producer: %w", err)
		}
		return p, nil
	case config.EventsKafka:
		p, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger, m)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Kafka producer: %w", err)
		}
		return p, nil
	default:
		return events.Noop{}, nil
	}
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// release closes resources in reverse order of opening.
func (a *App) release() error {
	var errs []error
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Error("failed to close resource", "resource", c.name, "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	a.publisher = nil
	return errors.Join(errs...)
}

// abort undoes a partial build, including the meter provider.
func (a *App) abort(ctx context.Context) {
	_ = a.release()
	if a.telemetry == nil {
		return
	}
	if err := a.telemetry.Shutdown(ctx, a.logger); err != nil {
		a.logger.Error("failed to shut down telemetry", "error", err)
	}
	a.telemetry = nil
}

func (a *App) Handler() http.Handler {
	return a.router
}

func (a *App) Run() error {
	s := a.config.Server
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(s.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", s.Port)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if err := a.release(); err != nil {
		errs = append(errs, err)
	}
	if err := a.telemetry.Shutdown(ctx, a.logger); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
