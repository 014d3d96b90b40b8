package aggregation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/report"
)

// Engine computes read-only summaries over approval records
type Engine struct {
	records port.RecordReader
	roster  port.ApproverRoster
}

// NewEngine creates an aggregation engine. roster may be nil when no roster is available.
func NewEngine(records port.RecordReader, roster port.ApproverRoster) *Engine {
	return &Engine{records: records, roster: roster}
}

// Snapshot is the set of records in a query's window, read in one consistent scan
type Snapshot struct {
	Query   report.Query
	Records []port.RecordView
}

// Load validates the query and reads its records. Pending records are placed in the
// window by their subject's creation time, decided records by decidedAt.
func (e *Engine) Load(ctx context.Context, q report.Query) (*Snapshot, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	from, to := q.Window()
	views, err := e.records.ListRecords(ctx, port.RecordFilter{Type: q.Type, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	in := make([]port.RecordView, 0, len(views))
	for _, v := range views {
		if q.Matches(v.SubjectType) && q.Contains(EffectiveTime(v)) {
			in = append(in, v)
		}
	}

	return &Snapshot{Query: q, Records: in}, nil
}

// Roster returns the approver roster when the query asks for it
func (e *Engine) Roster(ctx context.Context, q report.Query) ([]string, error) {
	if !q.IncludeRoster || e.roster == nil {
		return nil, nil
	}
	roster, err := e.roster.ListApprovers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list approvers: %w", err)
	}
	return roster, nil
}

// StatusBreakdown counts records per status overall and per subject type
func (e *Engine) StatusBreakdown(ctx context.Context, q report.Query) (*report.StatusBreakdown, error) {
	snap, err := e.Load(ctx, q)
	if err != nil {
		return nil, err
	}
	b := Breakdown(snap.Records)
	return &b, nil
}

// ApproverWorkload groups decided records by approver
func (e *Engine) ApproverWorkload(ctx context.Context, q report.Query) (*report.ApproverWorkload, error) {
	snap, err := e.Load(ctx, q)
	if err != nil {
		return nil, err
	}
	roster, err := e.Roster(ctx, snap.Query)
	if err != nil {
		return nil, err
	}
	w := Workload(snap.Records, roster)
	return &w, nil
}

// Trend buckets decided records into a dense series
func (e *Engine) Trend(ctx context.Context, q report.Query) (*report.Trend, error) {
	snap, err := e.Load(ctx, q)
	if err != nil {
		return nil, err
	}
	t := TrendOf(snap.Records, snap.Query)
	return &t, nil
}

// EffectiveTime is the instant a record is placed in a range by
func EffectiveTime(v port.RecordView) time.Time {
	if v.Record.DecidedAt != nil {
		return *v.Record.DecidedAt
	}
	return v.SubjectCreatedAt
}

type tally struct {
	counts       report.StatusCounts
	latencyHours float64
}

func (t *tally) add(r entity.ApprovalRecord) {
	t.counts.Total++
	switch r.Status {
	case entity.RecordStatusPending:
		t.counts.Pending++
		return
	case entity.RecordStatusApproved:
		t.counts.Approved++
	case entity.RecordStatusRejected:
		t.counts.Rejected++
	}
	t.latencyHours += r.LatencyHours()
}

func (t *tally) result() report.StatusCounts {
	c := t.counts
	c.ApprovalRate = report.Rate(c.Approved, c.Decided())
	if d := c.Decided(); d > 0 {
		c.AvgDecisionHours = t.latencyHours / float64(d)
	}
	return c
}

// Breakdown computes the status breakdown of records already in range
func Breakdown(records []port.RecordView) report.StatusBreakdown {
	var overall tally
	byType := map[entity.SubjectType]*tally{
		entity.SubjectTypeTravel:  {},
		entity.SubjectTypeExpense: {},
	}

	for _, v := range records {
		overall.add(v.Record)
		t, ok := byType[v.SubjectType]
		if !ok {
			t = &tally{}
			byType[v.SubjectType] = t
		}
		t.add(v.Record)
	}

	out := report.StatusBreakdown{
		Overall: overall.result(),
		ByType:  make(map[entity.SubjectType]report.StatusCounts, len(byType)),
	}
	for k, t := range byType {
		out.ByType[k] = t.result()
	}
	return out
}

// Workload computes per-approver decision counts. Approvers without decisions appear
// only when listed in roster, with zero counts.
func Workload(records []port.RecordView, roster []string) report.ApproverWorkload {
	rows := make(map[string]*tally)
	for _, name := range roster {
		rows[name] = &tally{}
	}

	for _, v := range records {
		if !v.Record.IsDecided() {
			continue
		}
		t, ok := rows[v.Record.Approver]
		if !ok {
			t = &tally{}
			rows[v.Record.Approver] = t
		}
		t.add(v.Record)
	}

	out := report.ApproverWorkload{Rows: make([]report.WorkloadRow, 0, len(rows))}
	for approver, t := range rows {
		c := t.result()
		out.Rows = append(out.Rows, report.WorkloadRow{
			Approver:        approver,
			Total:           c.Decided(),
			Approved:        c.Approved,
			Rejected:        c.Rejected,
			ApprovalRate:    c.ApprovalRate,
			AvgLatencyHours: c.AvgDecisionHours,
		})
	}
	sort.Slice(out.Rows, func(i, j int) bool {
		if out.Rows[i].Total != out.Rows[j].Total {
			return out.Rows[i].Total > out.Rows[j].Total
		}
		return out.Rows[i].Approver < out.Rows[j].Approver
	})
	return out
}

// TrendOf buckets decided records by decidedAt into every bucket of the query range
func TrendOf(records []port.RecordView, q report.Query) report.Trend {
	g := q.Granularity
	if g == "" {
		g = report.GranularityDay
	}

	buckets := report.Buckets(q.Start, q.End, g)
	points := make([]report.TrendPoint, len(buckets))
	index := make(map[int64]int, len(buckets))
	for i, b := range buckets {
		points[i] = report.TrendPoint{BucketStart: b}
		index[b.Unix()] = i
	}

	for _, v := range records {
		if !v.Record.IsDecided() {
			continue
		}
		i, ok := index[report.BucketStart(*v.Record.DecidedAt, g).Unix()]
		if !ok {
			continue
		}
		points[i].Count++
		if v.Record.Status == entity.RecordStatusApproved {
			points[i].Approved++
		} else {
			points[i].Rejected++
		}
	}

	return report.Trend{Granularity: g, Points: points}
}
