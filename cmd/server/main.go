package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/liamcoop/marches/internal/config"
	"github.com/liamcoop/marches/internal/logger"
	"github.com/liamcoop/marches/internal/metrics"
	"github.com/liamcoop/marches/migrations"
	"github.com/liamcoop/marches/procedures"
	"github.com/liamcoop/marches/rules"
)

type Server struct {
	db             *sql.DB // nil when procedures are kept in memory
	redis          *redis.Client
	service        *procedures.Service
	location       *time.Location
	requestTimeout time.Duration
	router         *chi.Mux
}

// NewServer wires the store, cache and engine described by cfg
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid engine timezone: %w", err)
	}

	engine, err := rules.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to build status engine: %w", err)
	}

	var db *sql.DB
	var store procedures.Store
	if cfg.Database.URL == "" {
		logger.Info("No DATABASE_URL set, keeping procedures in memory")
		store = procedures.NewInMemoryStore()
	} else {
		db, err = openDatabase(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if cfg.Database.RunMigrations {
			if err := runMigrations(cfg.Database.URL); err != nil {
				db.Close()
				return nil, err
			}
		}
		store = procedures.NewPostgresStore(db)
	}

	cache, redisClient := newCache(ctx, cfg.Cache)

	svc := procedures.NewService(store, engine,
		procedures.WithCache(cache),
		procedures.WithClock(func() time.Time { return time.Now().In(loc) }),
	)

	s := newServer(svc, db, loc, cfg.Server.RequestTimeout)
	s.redis = redisClient

	return s, nil
}

// NewServerWithService creates a server over an existing service.
// db is only used by the health check and may be nil.
func NewServerWithService(svc *procedures.Service, db *sql.DB, loc *time.Location) *Server {
	return newServer(svc, db, loc, 60*time.Second)
}

func newServer(svc *procedures.Service, db *sql.DB, loc *time.Location, requestTimeout time.Duration) *Server {
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		db:             db,
		service:        svc,
		location:       loc,
		requestTimeout: requestTimeout,
	}
	s.setupRoutes()
	return s
}

func openDatabase(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pingWithRetry(ctx, db.PingContext, startupBackoff()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// startupBackoff waits for a database that is still starting, for up to
// half a minute
func startupBackoff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 250 * time.Millisecond
	exp.MaxInterval = 5 * time.Second
	exp.MaxElapsedTime = 30 * time.Second
	return exp
}

func pingWithRetry(ctx context.Context, ping func(context.Context) error, b backoff.BackOff) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := ping(ctx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Database not reachable yet", "attempt", attempt, "retry_in", wait.String(), "error", err)
	}
	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
}

func runMigrations(databaseURL string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("Database schema is up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Migrations applied")
	return nil
}

// newCache builds the procedure list cache. An unreachable Redis is not
// fatal: the cache then misses and every list reads the store.
func newCache(ctx context.Context, cfg config.CacheConfig) (procedures.Cache, *redis.Client) {
	switch cfg.Backend {
	case config.CacheBackendNone:
		return procedures.NoCache{}, nil
	case config.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, procedure cache will miss", "addr", cfg.RedisAddr, "error", err)
		}
		return procedures.NewRedisCache(client, procedures.CacheConfig{TTL: cfg.TTL}), client
	default:
		return procedures.NewInMemoryCache(procedures.CacheConfig{TTL: cfg.TTL}), nil
	}
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Status engine
		r.Get("/statuses", s.handleListStatuses)
		r.Get("/rules", s.handleListRules)
		r.Post("/status", s.handleComputeStatus)
		r.Post("/status/explain", s.handleExplainStatus)

		// Procedure management
		r.Route("/procedures", func(r chi.Router) {
			r.Get("/", s.handleListProcedures)
			r.Post("/", s.handleCreateProcedure)
			r.Post("/bulk", s.handleBulkImport)
			r.Get("/summary", s.handleSummary)

			r.Route("/{procedureId}", func(r chi.Router) {
				r.Get("/", s.handleGetProcedure)
				r.Put("/", s.handleUpdateProcedure)
				r.Delete("/", s.handleDeleteProcedure)
				r.Get("/status", s.handleProcedureStatus)
			})
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the database and Redis connections
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// requestLogger logs every request and records its metrics
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		metrics.ObserveRequest(r.Method, status, duration)
		logger.Request(r.Method, r.URL.Path, status, duration, middleware.GetReqID(r.Context()))
	})
}

func main() {
	configFile := flag.String("config", "", "Path to a YAML configuration file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}

	ctx := context.Background()
	if err := logger.Configure(ctx, logger.Options{
		Level:           cfg.Logging.Level,
		OTELEnabled:     cfg.Logging.OTELEnabled,
		ServiceName:     cfg.Logging.ServiceName,
		ErrorSampleRate: cfg.Logging.ErrorSampleRate,
	}); err != nil {
		logger.Warn("Logger configuration incomplete", "error", err)
	}
	metrics.Register()

	server, err := NewServer(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}
	defer server.Close()

	port := strconv.Itoa(cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Server starting", "port", port, "timezone", cfg.Engine.Timezone, "cache", cfg.Cache.Backend)
	if err := serve(ctx, httpServer, cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := logger.Shutdown(shutdownCtx); err != nil {
		logger.Error("Log exporter shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}

// serve runs srv until ctx is done or the listener fails, then shuts it
// down gracefully
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
