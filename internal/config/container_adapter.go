package config

import (
	"github.com/garyjia/travel-approval/internal/container"
	"github.com/garyjia/travel-approval/internal/infrastructure/directory"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Driver: c.Storage.Driver,
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Workflow: container.WorkflowConfig{
			MaxAttempts: c.Workflow.MaxAttempts,
		},
		Reports: container.ReportsConfig{
			CacheTTL: c.Reports.CacheTTL,
		},
		Redis: container.RedisConfig{
			URL:          c.Redis.URL,
			PoolSize:     c.Redis.PoolSize,
			DialTimeout:  c.Redis.DialTimeout,
			ReadTimeout:  c.Redis.ReadTimeout,
			WriteTimeout: c.Redis.WriteTimeout,
			KeyPrefix:    c.Redis.KeyPrefix,
		},
		Lark: container.LarkConfig{
			AppID:            c.Lark.AppID,
			AppSecret:        c.Lark.AppSecret,
			ReceiveIDType:    c.Lark.ReceiveIDType,
			InboundDecisions: c.Lark.InboundDecisions,
		},
		Notifications: container.NotificationsConfig{
			Enabled:     c.Notifications.Enabled,
			Topic:       c.Notifications.Topic,
			BufferSize:  c.Notifications.BufferSize,
			SendTimeout: c.Notifications.SendTimeout,
		},
		Scheduler: container.SchedulerConfig{
			Enabled:         c.Scheduler.Enabled,
			OverdueSchedule: c.Scheduler.OverdueSchedule,
		},
		Approvers: directory.Config{
			Managers:        c.Approvers.Managers,
			DefaultManager:  c.Approvers.DefaultManager,
			DepartmentHeads: c.Approvers.DepartmentHeads,
			Roles:           c.Approvers.Roles,
			Finance:         c.Approvers.Finance,
			Delegates:       c.Approvers.Delegates,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
		},
	}
}
