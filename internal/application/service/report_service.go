package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garyjia/travel-approval/internal/application/aggregation"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/report"
)

// ReportRecorder receives report timings
type ReportRecorder interface {
	ObserveReport(kind string, cached bool, elapsed time.Duration)
}

// ReportService serves dashboard statistics
type ReportService interface {
	StatusBreakdown(ctx context.Context, q report.Query) (*report.StatusBreakdown, error)
	ApproverWorkload(ctx context.Context, q report.Query) (*report.ApproverWorkload, error)
	Trend(ctx context.Context, q report.Query) (*report.Trend, error)
	Overview(ctx context.Context, q report.Query) (*report.Overview, error)
	Export(ctx context.Context, q report.Query, w io.Writer) error
	ExportContentType() string
}

// ReportOption configures the report service
type ReportOption func(*reportServiceImpl)

// WithReportCache caches overview results for ttl
func WithReportCache(cache port.ReportCache, ttl time.Duration) ReportOption {
	return func(s *reportServiceImpl) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithReportRecorder sets the metrics recorder
func WithReportRecorder(r ReportRecorder) ReportOption {
	return func(s *reportServiceImpl) {
		s.recorder = r
	}
}

// WithExporter sets the document exporter
func WithExporter(e port.ReportExporter) ReportOption {
	return func(s *reportServiceImpl) {
		s.exporter = e
	}
}

type reportServiceImpl struct {
	engine   *aggregation.Engine
	cache    port.ReportCache
	cacheTTL time.Duration
	exporter port.ReportExporter
	recorder ReportRecorder
	logger   Logger
	now      func() time.Time
}

// NewReportService creates a new ReportService
func NewReportService(engine *aggregation.Engine, logger Logger, opts ...ReportOption) ReportService {
	s := &reportServiceImpl{
		engine: engine,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StatusBreakdown counts records per status
func (s *reportServiceImpl) StatusBreakdown(ctx context.Context, q report.Query) (*report.StatusBreakdown, error) {
	defer s.observe(report.KindStatusBreakdown, false, s.now())
	return s.engine.StatusBreakdown(ctx, q)
}

// ApproverWorkload groups decisions per approver
func (s *reportServiceImpl) ApproverWorkload(ctx context.Context, q report.Query) (*report.ApproverWorkload, error) {
	defer s.observe(report.KindApproverWorkload, false, s.now())
	return s.engine.ApproverWorkload(ctx, q)
}

// Trend returns the dense trend series
func (s *reportServiceImpl) Trend(ctx context.Context, q report.Query) (*report.Trend, error) {
	defer s.observe(report.KindTrend, false, s.now())
	return s.engine.Trend(ctx, q)
}

// Overview computes all three reports from one snapshot, using the cache when configured
func (s *reportServiceImpl) Overview(ctx context.Context, q report.Query) (*report.Overview, error) {
	start := s.now()
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := cacheKey(q)
	if ov, ok := s.cached(ctx, key); ok {
		s.observe(report.KindOverview, true, start)
		return ov, nil
	}

	snap, err := s.engine.Load(ctx, q)
	if err != nil {
		return nil, err
	}

	ov := &report.Overview{Query: snap.Query, GeneratedAt: s.now().UTC()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ov.Breakdown = aggregation.Breakdown(snap.Records)
		return nil
	})
	g.Go(func() error {
		roster, err := s.engine.Roster(gctx, snap.Query)
		if err != nil {
			return err
		}
		ov.Workload = aggregation.Workload(snap.Records, roster)
		return nil
	})
	g.Go(func() error {
		ov.Trend = aggregation.TrendOf(snap.Records, snap.Query)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}

	s.store(ctx, key, ov)
	s.observe(report.KindOverview, false, start)
	return ov, nil
}

// Export writes the overview through the configured exporter
func (s *reportServiceImpl) Export(ctx context.Context, q report.Query, w io.Writer) error {
	if s.exporter == nil {
		return fmt.Errorf("export: no exporter configured")
	}
	ov, err := s.Overview(ctx, q)
	if err != nil {
		return err
	}
	if err := s.exporter.Write(w, ov); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// ExportContentType is the MIME type of exported documents
func (s *reportServiceImpl) ExportContentType() string {
	if s.exporter == nil {
		return "application/octet-stream"
	}
	return s.exporter.ContentType()
}

func (s *reportServiceImpl) cached(ctx context.Context, key string) (*report.Overview, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Error("Report cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var ov report.Overview
	if err := json.Unmarshal(data, &ov); err != nil {
		s.logger.Error("Report cache entry unreadable", "key", key, "error", err)
		return nil, false
	}
	return &ov, true
}

func (s *reportServiceImpl) store(ctx context.Context, key string, ov *report.Overview) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(ov)
	if err != nil {
		s.logger.Error("Report cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.Error("Report cache write failed", "key", key, "error", err)
	}
}

func (s *reportServiceImpl) observe(kind report.Kind, cached bool, start time.Time) {
	if s.recorder != nil {
		s.recorder.ObserveReport(string(kind), cached, s.now().Sub(start))
	}
}

func cacheKey(q report.Query) string {
	return fmt.Sprintf("report:overview:%s:%s:%s:%s:%t",
		q.Start.Format(report.DateLayout), q.End.Format(report.DateLayout), q.Type, q.Granularity, q.IncludeRoster)
}
