package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Storage drivers
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Workflow      WorkflowConfig      `mapstructure:"workflow"`
	Reports       ReportsConfig       `mapstructure:"reports"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Lark          LarkConfig          `mapstructure:"lark"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Approvers     ApproversConfig     `mapstructure:"approvers"`
	Logger        LoggerConfig        `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the subject store
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// WorkflowConfig tunes the workflow engine
type WorkflowConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

// ReportsConfig tunes report caching
type ReportsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// RedisConfig holds the report cache connection. An empty URL disables caching.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// LarkConfig holds Lark API configuration. Without credentials notifications go to the log.
type LarkConfig struct {
	AppID            string `mapstructure:"app_id"`
	AppSecret        string `mapstructure:"app_secret"`
	ReceiveIDType    string `mapstructure:"receive_id_type"`
	InboundDecisions bool   `mapstructure:"inbound_decisions"`
}

// NotificationsConfig holds the notification pipeline settings
type NotificationsConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Topic       string        `mapstructure:"topic"`
	BufferSize  int64         `mapstructure:"buffer_size"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// SchedulerConfig holds the overdue scanner settings
type SchedulerConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	OverdueSchedule string `mapstructure:"overdue_schedule"`
}

// ApproversConfig is the static approver directory
type ApproversConfig struct {
	Managers        map[string]string   `mapstructure:"managers"`
	DefaultManager  string              `mapstructure:"default_manager"`
	DepartmentHeads map[string]string   `mapstructure:"department_heads"`
	Roles           map[string]string   `mapstructure:"roles"`
	Finance         string              `mapstructure:"finance"`
	Delegates       map[string][]string `mapstructure:"delegates"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file, a .env file and environment variables.
// An empty configPath uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("APPROVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.driver", StorageSQLite)

	// Database defaults
	v.SetDefault("database.path", "data/approvals.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.migrations_dir", "migrations")

	v.SetDefault("workflow.max_attempts", 3)
	v.SetDefault("reports.cache_ttl", time.Minute)

	// Redis defaults
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.key_prefix", "approvals:")

	v.SetDefault("lark.receive_id_type", "user_id")
	v.SetDefault("lark.inbound_decisions", false)

	// Notification defaults
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.topic", "approval.notifications")
	v.SetDefault("notifications.buffer_size", 256)
	v.SetDefault("notifications.send_timeout", 10*time.Second)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.overdue_schedule", "@every 15m")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("redis.url", "REDIS_URL")
	_ = v.BindEnv("database.path", "APPROVAL_DATABASE_PATH", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", StorageSQLite, StorageMemory, c.Storage.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Workflow.MaxAttempts < 1 {
		return fmt.Errorf("workflow.max_attempts must be at least 1")
	}
	if c.Reports.CacheTTL < 0 {
		return fmt.Errorf("reports.cache_ttl must not be negative")
	}
	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}
	if c.Lark.InboundDecisions && c.Lark.AppID == "" {
		return fmt.Errorf("lark.inbound_decisions needs lark credentials")
	}
	if c.Scheduler.Enabled && c.Scheduler.OverdueSchedule == "" {
		return fmt.Errorf("scheduler.overdue_schedule is required when the scheduler is enabled")
	}

	return nil
}
