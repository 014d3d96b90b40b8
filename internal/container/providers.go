package container

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/aggregation"
	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/application/service"
	"github.com/garyjia/travel-approval/internal/application/workflow"
	"github.com/garyjia/travel-approval/internal/infrastructure/cache"
	"github.com/garyjia/travel-approval/internal/infrastructure/directory"
	"github.com/garyjia/travel-approval/internal/infrastructure/export"
	infraLark "github.com/garyjia/travel-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/travel-approval/internal/infrastructure/messaging"
	"github.com/garyjia/travel-approval/internal/infrastructure/metrics"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/memory"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-approval/internal/infrastructure/worker"
	"github.com/garyjia/travel-approval/internal/interfaces/websocket"
	"github.com/garyjia/travel-approval/pkg/database"
)

// StorageBundle holds the stores behind the workflow and aggregation engines.
// DB is nil for the memory driver.
type StorageBundle struct {
	DB       *database.DB
	Subjects port.SubjectRepository
	Records  port.RecordReader
	Policies port.PolicyRepository
}

// MessagingBundle holds the notification bus
type MessagingBundle struct {
	Bus       *gochannel.GoChannel
	Publisher port.NotificationPublisher
	Messenger port.Messenger
}

// ProvideStorage opens the configured store. The sqlite driver runs pending
// migrations; the memory driver is seeded with the default policies.
func ProvideStorage(ctx context.Context, cfg *Config, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Driver {
	case DriverMemory:
		store := memory.NewStore()
		if err := store.SeedDefaults(ctx); err != nil {
			return nil, fmt.Errorf("failed to seed policies: %w", err)
		}
		logger.Info("Using in-memory storage")
		return &StorageBundle{Subjects: store, Records: store, Policies: store.Policies()}, nil

	case DriverSQLite:
		db, err := database.New(database.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			BusyTimeout:     cfg.Database.BusyTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}

		if cfg.Database.MigrationsDir != "" {
			if _, err := database.NewMigrator(db, logger).RunMigrations(ctx, cfg.Database.MigrationsDir); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		sdb := sqlite.NewDB(db.DB, logger)
		return &StorageBundle{
			DB:       db,
			Subjects: sqlite.NewSubjectRepository(sdb, logger),
			Records:  sqlite.NewRecordReader(sdb, logger),
			Policies: sqlite.NewPolicyRepository(sdb, logger),
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ProvideMessenger returns the Lark messenger when credentials are configured,
// otherwise a messenger that writes to the log.
func ProvideMessenger(cfg *LarkConfig, logger *zap.Logger) port.Messenger {
	larkCfg := infraLark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		ReceiveIDType: cfg.ReceiveIDType,
	}
	if !larkCfg.Enabled() {
		logger.Info("Lark credentials not set, notifications go to the log")
		return messaging.NewLogMessenger(logger)
	}
	return infraLark.NewMessenger(infraLark.NewSDKClient(larkCfg, logger), logger)
}

// ProvideMessaging creates the in-process bus, its publisher and the outbound messenger
func ProvideMessaging(cfg *Config, logger *zap.Logger) *MessagingBundle {
	bus := messaging.NewGoChannel(messaging.Config{
		Topic:      cfg.Notifications.Topic,
		BufferSize: cfg.Notifications.BufferSize,
	}, logger)

	return &MessagingBundle{
		Bus:       bus,
		Publisher: messaging.NewPublisher(bus, cfg.Notifications.Topic, logger),
		Messenger: ProvideMessenger(&cfg.Lark, logger),
	}
}

// ProvideReportCache connects to Redis. Returns nil values when no URL is configured.
func ProvideReportCache(ctx context.Context, cfg *RedisConfig, logger *zap.Logger) (*redis.Client, port.ReportCache, error) {
	client, err := cache.NewClient(ctx, cache.Config{
		URL:          cfg.URL,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		KeyPrefix:    cfg.KeyPrefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if client == nil {
		return nil, nil, nil
	}
	return client, cache.NewReportCache(client, cfg.KeyPrefix, logger), nil
}

// ProvideDispatcher creates the event dispatcher
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}))
}

// ServiceDeps holds dependencies for creating services
type ServiceDeps struct {
	Config     *Config
	Storage    *StorageBundle
	Directory  *directory.Directory
	Dispatcher dispatcher.Dispatcher
	Publisher  port.NotificationPublisher
	Cache      port.ReportCache
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// ProvideServices creates the workflow engine and all application services.
// The notification service subscribes to the dispatcher when a publisher is given.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Storage == nil || deps.Directory == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("storage, directory and dispatcher are required")
	}
	log := &zapLoggerAdapter{logger: deps.Logger}

	engine := workflow.NewEngine(
		deps.Storage.Subjects,
		deps.Storage.Policies,
		deps.Directory,
		workflow.WithDirectory(deps.Directory),
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithMaxAttempts(deps.Config.Workflow.MaxAttempts),
		workflow.WithRecorder(deps.Metrics),
		workflow.WithLogger(log),
	)

	opts := []service.ReportOption{
		service.WithReportRecorder(deps.Metrics),
		service.WithExporter(export.NewWorkbookExporter(deps.Logger)),
	}
	if deps.Cache != nil && deps.Config.Reports.CacheTTL > 0 {
		opts = append(opts, service.WithReportCache(deps.Cache, deps.Config.Reports.CacheTTL))
	}

	bundle := &ServiceBundle{
		Engine:   engine,
		Approval: service.NewApprovalService(deps.Storage.Subjects, engine, log),
		Report:   service.NewReportService(aggregation.NewEngine(deps.Storage.Records, deps.Directory), log, opts...),
		Policy:   service.NewPolicyService(deps.Storage.Policies, deps.Directory, log),
	}

	if deps.Publisher != nil {
		bundle.Notification = service.NewNotificationService(deps.Publisher, log)
		bundle.Notification.Register(deps.Dispatcher)
	}

	return bundle, nil
}

// WorkerDeps holds dependencies for creating workers
type WorkerDeps struct {
	Config     *Config
	Storage    *StorageBundle
	Dispatcher dispatcher.Dispatcher
	Messaging  *MessagingBundle
	Approval   service.ApprovalService
	Logger     *zap.Logger
}

// ProvideWorkers registers the notification relay, the overdue scanner and the
// Lark inbound decision adapter per configuration
func ProvideWorkers(deps *WorkerDeps) *worker.WorkerManager {
	manager := worker.NewWorkerManager(deps.Logger)

	if deps.Messaging != nil {
		manager.Register(worker.NewNotificationRelay(
			worker.NotificationRelayConfig{
				Topic:       deps.Config.Notifications.Topic,
				SendTimeout: deps.Config.Notifications.SendTimeout,
			},
			deps.Messaging.Bus,
			deps.Messaging.Messenger,
			deps.Logger,
		))
	}

	if deps.Config.Scheduler.Enabled {
		manager.Register(worker.NewOverdueScanner(
			worker.OverdueScannerConfig{Schedule: deps.Config.Scheduler.OverdueSchedule},
			deps.Storage.Records,
			deps.Dispatcher,
			deps.Logger,
		))
	}

	lark := deps.Config.Lark
	if lark.InboundDecisions && lark.AppID != "" && deps.Approval != nil {
		var replies port.Messenger
		if deps.Messaging != nil {
			replies = deps.Messaging.Messenger
		}
		manager.Register(websocket.NewLarkAdapter(
			websocket.LarkAdapterConfig{
				AppID:         lark.AppID,
				AppSecret:     lark.AppSecret,
				ReceiveIDType: lark.ReceiveIDType,
			},
			deps.Approval,
			replies,
			deps.Logger,
		))
	}

	return manager
}
