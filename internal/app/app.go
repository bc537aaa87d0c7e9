package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"

	"insights-export/internal/clients/rowsource"
	"insights-export/internal/config"
	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
	"insights-export/internal/core/usecases"
	"insights-export/internal/identity"
	"insights-export/internal/shell/executor"
	"insights-export/internal/shell/messaging"
	"insights-export/internal/shell/scheduler"
	"insights-export/internal/shell/source"
	"insights-export/internal/shell/storage"
)

// Services is the wired export engine plus the resources it owns
type Services struct {
	Config *config.Config

	// Export drives exports without ownership checks (driver, CLI)
	Export ports.ExportService

	// Authorized scopes every operation to the caller's identity (HTTP)
	Authorized ports.AuthorizedExportService

	// Locks is nil in single-instance mode
	Locks executor.LockManager

	closers []func() error
}

// Build wires repositories, row sources, gate and notifier from configuration.
// Close releases everything Build opened, also when Build fails half way.
func Build(ctx context.Context, cfg *config.Config) (*Services, error) {
	s := &Services{Config: cfg}

	if err := s.build(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Services) build(ctx context.Context) error {
	cfg := s.Config

	jobs, runs, redisClient, err := s.repositories(ctx)
	if err != nil {
		return err
	}

	if cfg.Redis.Enabled {
		if redisClient == nil {
			if redisClient, err = s.redisClient(ctx); err != nil {
				return err
			}
		}
		s.Locks = storage.NewRedisLockManager(redisClient, cfg.Redis.KeyPrefix, cfg.Driver.LockTTL, cfg.Driver.InstanceID)
		log.Printf("Distributed locking enabled for instance: %s", cfg.Driver.InstanceID)
	} else {
		log.Printf("Running in single-instance mode (no distributed locking)")
	}

	resolver, err := s.resolver(ctx)
	if err != nil {
		return err
	}

	notifier, err := s.notifier()
	if err != nil {
		return err
	}

	store := storage.NewLocalArtifactStore(cfg.Export.OutputDir)
	planner := usecases.NewPlanner(store, usecases.PlannerConfig{
		BaseDir:          cfg.Export.OutputDir,
		DefaultChunkSize: cfg.Export.ChunkSize,
		DefaultRowCap:    cfg.Export.RowCap,
		XLSXRowCap:       cfg.Export.XLSXRowCap,
	})
	finalizer := usecases.NewFinalizer(store, DownloadURL(cfg.Export.DownloadBaseURL))

	core := usecases.NewExportService(
		jobs,
		runs,
		resolver,
		store,
		planner,
		usecases.NewStepExecutor(store),
		finalizer,
		AccessGate(cfg),
		notifier,
	)

	s.Export = executor.NewGuardedExportService(core, s.Locks, cfg.Driver.LockTTL, cfg.Driver.InstanceID)
	s.Authorized = usecases.NewAuthorizedExportService(s.Export)
	return nil
}

// Scheduler builds the background step driver over the guarded service
func (s *Services) Scheduler() *scheduler.StepScheduler {
	return scheduler.NewStepScheduler(s.Export, s.Locks, scheduler.Config{
		StepInterval:  s.Config.Driver.StepInterval,
		SweepSchedule: s.Config.Driver.SweepSchedule,
		Retention:     s.Config.Export.Retention,
		InstanceID:    s.Config.Driver.InstanceID,
	})
}

// Close releases resources in reverse order of acquisition
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Printf("Error closing resource: %v", err)
		}
	}
	s.closers = nil
}

func (s *Services) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Services) repositories(ctx context.Context) (usecases.JobRepository, usecases.RunRepository, *redis.Client, error) {
	cfg := s.Config

	switch cfg.Database.Type {
	case "memory":
		log.Printf("In-memory storage initialized (exports are lost on restart)")
		return storage.NewMemoryJobRepository(), storage.NewMemoryRunRepository(), nil, nil

	case "sqlite":
		db, err := storage.OpenSQLite(cfg.Database.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize SQLite database: %w", err)
		}
		s.onClose(db.Close)
		log.Printf("SQLite storage initialized successfully")
		return storage.NewSQLiteJobRepository(db), storage.NewSQLiteRunRepository(db), nil, nil

	case "postgres":
		db, err := storage.OpenPostgres(cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize PostgreSQL database: %w", err)
		}
		s.onClose(db.Close)
		configurePool(db, cfg.Database)
		log.Printf("PostgreSQL storage initialized successfully")
		return storage.NewPostgresJobRepository(db), storage.NewPostgresRunRepository(db), nil, nil

	case "redis":
		client, err := s.redisClient(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Printf("Redis storage initialized successfully")
		return storage.NewRedisJobRepository(client, cfg.Redis.KeyPrefix), storage.NewRedisRunRepository(client, cfg.Redis.KeyPrefix), client, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported database type: %s (must be memory, sqlite, postgres or redis)", cfg.Database.Type)
	}
}

func configurePool(db *sql.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	if cfg.ConnectionMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnectionMaxLifetime)
	}
}

func (s *Services) redisClient(ctx context.Context) (*redis.Client, error) {
	client := storage.NewRedisClient(s.Config.Redis)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", s.Config.Redis.Addr, err)
	}
	s.onClose(client.Close)
	return client, nil
}

// resolver opens the configured row source backends; unset backends stay nil
func (s *Services) resolver(ctx context.Context) (*source.Resolver, error) {
	cfg := s.Config.Source

	var postgres source.Querier
	if cfg.PostgresDSN != "" {
		pool, err := source.OpenPgxPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.onClose(func() error { pool.Close(); return nil })
		postgres = pool
		log.Printf("Postgres row source enabled")
	}

	var sqliteDB *sql.DB
	if cfg.SQLitePath != "" {
		db, err := source.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.onClose(db.Close)
		sqliteDB = db
		log.Printf("SQLite row source enabled: %s", cfg.SQLitePath)
	}

	var remote *rowsource.Client
	if cfg.QueryServiceURL != "" {
		remote = rowsource.NewClient(cfg.QueryServiceURL, cfg.Timeout)
		log.Printf("Query service row source enabled: %s", cfg.QueryServiceURL)
	}

	return source.NewResolver(postgres, sqliteDB, remote), nil
}

func (s *Services) notifier() (ports.CompletionNotifier, error) {
	cfg := s.Config

	impl := cfg.CompletionNotifierImpl
	if (impl == "kafka" || impl == "notifications") && !cfg.Kafka.Enabled {
		log.Printf("Kafka is disabled, completion notifications will not be sent")
		impl = "null"
	}

	var sender executor.MessageSender
	if impl == "kafka" || impl == "notifications" {
		log.Printf("Kafka producer config - brokers: %v, topic: %s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
		producer, err := messaging.NewKafkaProducer(cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Kafka producer: %w", err)
		}
		s.onClose(producer.Close)
		sender = producer
	}

	return executor.NewCompletionNotifier(impl, sender)
}

// AccessGate builds the configured gate. The org gate always runs first so a
// remote check never sees an artifact outside the caller's organization.
func AccessGate(cfg *config.Config) ports.AccessGate {
	orgGate := identity.NewOrgGate(cfg.Export.OutputDir)

	switch cfg.AccessGateImpl {
	case "bop":
		if cfg.Bop.EphemeralMode {
			log.Printf("BOP access gate disabled in ephemeral mode, using org gate")
			return orgGate
		}
		log.Printf("Initializing BOP access gate")
		return identity.NewChainGate(orgGate, identity.NewBopAccessGate(
			cfg.Bop.BaseURL,
			cfg.Bop.APIToken,
			cfg.Bop.ClientID,
			cfg.Bop.InsightsEnv,
		))
	case "allow":
		log.Printf("Access gate allows every finished artifact")
		return identity.AllowAllGate{}
	default:
		return orgGate
	}
}

// DownloadURL builds artifact URIs under the public download endpoint
func DownloadURL(baseURL string) usecases.DownloadURLFunc {
	base := strings.TrimRight(baseURL, "/")
	return func(job domain.ExportJob) string {
		return base + "/" + job.ID + "/download"
	}
}
