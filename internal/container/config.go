// Package container provides dependency injection and lifecycle management
// for the approval service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/travel-approval/internal/infrastructure/directory"
)

// Storage drivers understood by the container
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Storage driver, sqlite or memory
	Driver string

	// Database configuration, used by the sqlite driver
	Database DatabaseConfig

	// Workflow engine configuration
	Workflow WorkflowConfig

	// Report configuration
	Reports ReportsConfig

	// Redis report cache
	Redis RedisConfig

	// Lark API configuration
	Lark LarkConfig

	// Notification pipeline
	Notifications NotificationsConfig

	// Overdue scanner
	Scheduler SchedulerConfig

	// Static approver directory
	Approvers directory.Config

	// Server configuration
	Server ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout bounds how long a writer waits for the database lock
	BusyTimeout time.Duration

	// MigrationsDir is the path to migration files
	MigrationsDir string
}

// WorkflowConfig holds workflow engine settings.
type WorkflowConfig struct {
	// MaxAttempts bounds retries after a version conflict
	MaxAttempts int
}

// ReportsConfig holds report settings.
type ReportsConfig struct {
	// CacheTTL is how long an overview stays cached; zero disables caching
	CacheTTL time.Duration
}

// RedisConfig holds report cache settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	// AppID is the Lark application ID
	AppID string

	// AppSecret is the Lark application secret
	AppSecret string

	// ReceiveIDType maps user ids to Lark receivers
	ReceiveIDType string

	// InboundDecisions accepts approve/reject commands sent to the bot
	InboundDecisions bool
}

// NotificationsConfig holds notification pipeline settings.
type NotificationsConfig struct {
	Enabled     bool
	Topic       string
	BufferSize  int64
	SendTimeout time.Duration
}

// SchedulerConfig holds overdue scanner settings.
type SchedulerConfig struct {
	Enabled         bool
	OverdueSchedule string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Driver: DriverSQLite,
		Database: DatabaseConfig{
			Path:            "data/approvals.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
			MigrationsDir:   "migrations",
		},
		Workflow: WorkflowConfig{MaxAttempts: 3},
		Reports:  ReportsConfig{CacheTTL: time.Minute},
		Redis: RedisConfig{
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			KeyPrefix:    "approvals:",
		},
		Notifications: NotificationsConfig{
			Enabled:     true,
			Topic:       "approval.notifications",
			BufferSize:  256,
			SendTimeout: 10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			OverdueSchedule: "@every 15m",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Driver)
	}

	if c.Workflow.MaxAttempts < 1 {
		return fmt.Errorf("workflow.max_attempts must be at least 1")
	}

	return nil
}
