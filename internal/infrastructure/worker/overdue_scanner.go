package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/event"
)

// OverdueScannerConfig holds configuration for the overdue scanner
type OverdueScannerConfig struct {
	// Schedule is a cron spec, e.g. "@every 15m" or "0 9 * * 1-5"
	Schedule string
}

// DefaultOverdueScannerConfig returns default configuration
func DefaultOverdueScannerConfig() OverdueScannerConfig {
	return OverdueScannerConfig{Schedule: "@every 15m"}
}

// OverdueScanner periodically finds pending records older than their level's timeout
// and emits an overdue event for each. It never changes workflow state.
type OverdueScanner struct {
	config     OverdueScannerConfig
	records    port.RecordReader
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	cron      *cron.Cron
	isRunning bool
	// last reminder per subject and level
	reminded map[string]time.Time
}

// NewOverdueScanner creates a new overdue scanner
func NewOverdueScanner(
	config OverdueScannerConfig,
	records port.RecordReader,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
) *OverdueScanner {
	if config.Schedule == "" {
		config.Schedule = DefaultOverdueScannerConfig().Schedule
	}
	return &OverdueScanner{
		config:     config,
		records:    records,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
		reminded:   make(map[string]time.Time),
	}
}

// Start schedules the scan
func (w *OverdueScanner) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("overdue scanner already running")
	}

	logger := cronLogger{w.logger.Sugar()}
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	))
	if _, err := c.AddFunc(w.config.Schedule, func() {
		if _, err := w.Scan(ctx); err != nil {
			w.logger.Error("Overdue scan failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid overdue schedule %q: %w", w.config.Schedule, err)
	}

	c.Start()
	w.cron = c
	w.isRunning = true
	w.logger.Info("OverdueScanner started", zap.String("schedule", w.config.Schedule))
	return nil
}

// Stop halts the schedule and waits for a running scan to finish
func (w *OverdueScanner) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	c := w.cron
	w.mu.Unlock()

	<-c.Stop().Done()
	w.logger.Info("OverdueScanner stopped")
	return nil
}

// Name returns the worker name for identification
func (w *OverdueScanner) Name() string {
	return "OverdueScanner"
}

// Scan emits overdue events for pending records past their timeout and returns how many
// were emitted. A record is reminded again only after another full timeout elapses.
func (w *OverdueScanner) Scan(ctx context.Context) (int, error) {
	views, err := w.records.ListRecords(ctx, port.RecordFilter{PendingOnly: true})
	if err != nil {
		return 0, fmt.Errorf("list pending records: %w", err)
	}

	now := w.now().UTC()
	emitted := 0
	for _, v := range views {
		if v.TimeoutHours <= 0 {
			continue
		}
		timeout := time.Duration(v.TimeoutHours) * time.Hour
		waited := now.Sub(v.Record.ActivatedAt)
		if waited <= timeout {
			continue
		}

		key := fmt.Sprintf("%s:%d", v.SubjectID, v.Record.Level)
		w.mu.Lock()
		last, seen := w.reminded[key]
		due := !seen || now.Sub(last) >= timeout
		if due {
			w.reminded[key] = now
		}
		w.mu.Unlock()
		if !due {
			continue
		}

		overdueHours := (waited - timeout).Hours()
		evt := event.NewApprovalOverdue(v.SubjectID, v.Record.Level, v.Record.Approver, overdueHours)
		w.dispatcher.DispatchAsync(ctx, evt)
		emitted++

		w.logger.Info("Approval overdue",
			zap.String("subject_id", v.SubjectID),
			zap.Int("level", v.Record.Level),
			zap.String("approver", v.Record.Approver),
			zap.Float64("overdue_hours", overdueHours))
	}

	w.forgetDecided(views)
	return emitted, nil
}

// forgetDecided drops reminder marks for records no longer pending
func (w *OverdueScanner) forgetDecided(pending []port.RecordView) {
	live := make(map[string]struct{}, len(pending))
	for _, v := range pending {
		live[fmt.Sprintf("%s:%d", v.SubjectID, v.Record.Level)] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for key := range w.reminded {
		if _, ok := live[key]; !ok {
			delete(w.reminded, key)
		}
	}
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
