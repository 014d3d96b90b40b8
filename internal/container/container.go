package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/service"
	"github.com/garyjia/travel-approval/internal/application/workflow"
	"github.com/garyjia/travel-approval/internal/infrastructure/directory"
	"github.com/garyjia/travel-approval/internal/infrastructure/metrics"
	"github.com/garyjia/travel-approval/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure
	storage   *StorageBundle
	redis     *redis.Client
	messaging *MessagingBundle
	directory *directory.Directory
	metrics   *metrics.Metrics

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Engine       workflow.Engine
	Approval     service.ApprovalService
	Report       service.ReportService
	Policy       service.PolicyService
	Notification service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Storage
// 2. Report cache and messaging
// 3. Dispatcher, engine and services
// 4. Workers
// A failure part way releases what was already opened.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization", zap.String("driver", c.config.Driver))

	if err := c.init(); err != nil {
		if releaseErr := c.release(); releaseErr != nil {
			c.logger.Error("Failed to release partially started container", zap.Error(releaseErr))
		}
		return err
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

func (c *Container) init() error {
	// Step 1: Initialize storage
	storage, err := ProvideStorage(c.ctx, c.config, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.storage = storage
	c.logger.Info("Storage initialized")

	// Step 2: Initialize report cache and messaging
	client, reportCache, err := ProvideReportCache(c.ctx, &c.config.Redis, c.logger)
	if err != nil {
		return err
	}
	c.redis = client
	if c.config.Notifications.Enabled {
		c.messaging = ProvideMessaging(c.config, c.logger)
	}
	c.directory = directory.New(c.config.Approvers, c.logger)
	c.metrics = metrics.New()
	c.logger.Info("Infrastructure initialized",
		zap.Bool("report_cache", reportCache != nil),
		zap.Bool("notifications", c.messaging != nil))

	// Step 3: Initialize dispatcher and services
	c.dispatcher = ProvideDispatcher(c.logger)
	deps := &ServiceDeps{
		Config:     c.config,
		Storage:    c.storage,
		Directory:  c.directory,
		Dispatcher: c.dispatcher,
		Cache:      reportCache,
		Metrics:    c.metrics,
		Logger:     c.logger,
	}
	if c.messaging != nil {
		deps.Publisher = c.messaging.Publisher
	}
	services, err := ProvideServices(deps)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.logger.Info("Application services initialized")

	// Step 4: Initialize and start workers
	c.workers = ProvideWorkers(&WorkerDeps{
		Config:     c.config,
		Storage:    c.storage,
		Dispatcher: c.dispatcher,
		Messaging:  c.messaging,
		Approval:   c.services.Approval,
		Logger:     c.logger,
	})
	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.release()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// release tears down whatever has been initialized, in reverse order
func (c *Container) release() error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	// Stop workers first so nothing new reaches the dispatcher
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	// Drain async handlers before closing the bus they publish to
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.messaging != nil {
		if err := c.messaging.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bus: %w", err))
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if c.storage != nil && c.storage.DB != nil {
		if err := c.storage.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, err error) {
		if err != nil {
			status.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
			return
		}
		status.Components[name] = ComponentHealth{Healthy: true}
	}

	switch {
	case c.storage == nil:
		set("storage", fmt.Errorf("not initialized"))
	case c.storage.DB != nil:
		set("storage", c.storage.DB.PingContext(ctx))
	default:
		set("storage", nil)
	}

	if c.redis != nil {
		set("redis", c.redis.Ping(ctx).Err())
	}

	if c.workers == nil {
		set("workers", fmt.Errorf("not initialized"))
	} else if !c.workers.IsRunning() {
		set("workers", fmt.Errorf("not running"))
	} else {
		status.Components["workers"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("running: %s", strings.Join(c.workers.Names(), ", ")),
		}
	}

	return status
}

// Getters for accessing container components

// Storage returns the storage bundle.
func (c *Container) Storage() *StorageBundle {
	return c.storage
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Metrics returns the metrics registry.
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// ServiceLogger adapts the container's zap logger to the application Logger interface.
func (c *Container) ServiceLogger() service.Logger {
	return &zapLoggerAdapter{logger: c.logger}
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces of the application layer.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
