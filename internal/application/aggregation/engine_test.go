package aggregation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/report"
)

type mockReader struct {
	views  []port.RecordView
	err    error
	calls  int
	filter port.RecordFilter
}

func (m *mockReader) ListRecords(ctx context.Context, f port.RecordFilter) ([]port.RecordView, error) {
	m.calls++
	m.filter = f
	return m.views, m.err
}

type mockRoster struct {
	names []string
	err   error
}

func (m mockRoster) ListApprovers(ctx context.Context) ([]string, error) { return m.names, m.err }

func day(s string) time.Time {
	t, err := time.Parse(report.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func decided(typ entity.SubjectType, approver string, status entity.RecordStatus, activated time.Time, latency time.Duration) port.RecordView {
	at := activated.Add(latency)
	return port.RecordView{
		SubjectID:        fmt.Sprintf("s-%s-%d", approver, activated.UnixNano()),
		SubjectType:      typ,
		SubjectCreatedAt: activated,
		Record: entity.ApprovalRecord{
			Approver:    approver,
			Level:       1,
			Status:      status,
			ActivatedAt: activated,
			DecidedAt:   &at,
		},
	}
}

func pending(typ entity.SubjectType, approver string, created time.Time) port.RecordView {
	return port.RecordView{
		SubjectID:        "p-" + approver,
		SubjectType:      typ,
		SubjectCreatedAt: created,
		Record: entity.ApprovalRecord{
			Approver:    approver,
			Level:       1,
			Status:      entity.RecordStatusPending,
			ActivatedAt: created,
		},
	}
}

func query(start, end string) report.Query {
	return report.Query{Start: day(start), End: day(end)}
}

func TestLoad_RejectsBadQueries(t *testing.T) {
	tests := []struct {
		name    string
		q       report.Query
		wantErr error
	}{
		{"start after end", query("2024-02-02", "2024-02-01"), report.ErrInvalidRange},
		{"unknown type", report.Query{Start: day("2024-02-01"), End: day("2024-02-02"), Type: "invoice"}, entity.ErrInvalidArgument},
		{"unknown granularity", report.Query{Start: day("2024-02-01"), End: day("2024-02-02"), Granularity: "hour"}, entity.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &mockReader{}
			e := NewEngine(reader, nil)

			_, err := e.StatusBreakdown(context.Background(), tt.q)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, reader.calls, "reader must not be called for invalid queries")
		})
	}
}

func TestLoad_PropagatesReaderError(t *testing.T) {
	e := NewEngine(&mockReader{err: errors.New("disk on fire")}, nil)

	_, err := e.Trend(context.Background(), query("2024-02-01", "2024-02-07"))
	assert.ErrorContains(t, err, "disk on fire")
}

func TestLoad_PassesWindowToReader(t *testing.T) {
	reader := &mockReader{}
	e := NewEngine(reader, nil)

	_, err := e.StatusBreakdown(context.Background(), report.Query{Start: day("2024-02-01"), End: day("2024-02-07"), Type: entity.SubjectTypeExpense})
	require.NoError(t, err)

	assert.Equal(t, day("2024-02-01"), reader.filter.From)
	assert.Equal(t, day("2024-02-08"), reader.filter.To)
	assert.Equal(t, entity.SubjectTypeExpense, reader.filter.Type)
}

func TestStatusBreakdown(t *testing.T) {
	base := day("2024-03-04")
	reader := &mockReader{views: []port.RecordView{
		decided(entity.SubjectTypeTravel, "alice", entity.RecordStatusApproved, base, 2*time.Hour),
		decided(entity.SubjectTypeTravel, "alice", entity.RecordStatusRejected, base, 4*time.Hour),
		decided(entity.SubjectTypeExpense, "bob", entity.RecordStatusApproved, base, 6*time.Hour),
		pending(entity.SubjectTypeExpense, "bob", base.Add(time.Hour)),
		// pending record of a subject created before the range is excluded
		pending(entity.SubjectTypeTravel, "carol", day("2024-02-20")),
		// decided after the range
		decided(entity.SubjectTypeTravel, "alice", entity.RecordStatusApproved, day("2024-03-10"), time.Hour),
	}}
	e := NewEngine(reader, nil)

	b, err := e.StatusBreakdown(context.Background(), query("2024-03-01", "2024-03-07"))
	require.NoError(t, err)

	assert.Equal(t, 1, b.Overall.Pending)
	assert.Equal(t, 2, b.Overall.Approved)
	assert.Equal(t, 1, b.Overall.Rejected)
	assert.Equal(t, 4, b.Overall.Total)
	assert.InDelta(t, 66.666, b.Overall.ApprovalRate, 0.01)
	assert.InDelta(t, 4.0, b.Overall.AvgDecisionHours, 1e-9)

	travel := b.ByType[entity.SubjectTypeTravel]
	assert.Equal(t, 1, travel.Approved)
	assert.Equal(t, 1, travel.Rejected)
	assert.Equal(t, 50.0, travel.ApprovalRate)

	expense := b.ByType[entity.SubjectTypeExpense]
	assert.Equal(t, 1, expense.Pending)
	assert.Equal(t, 1, expense.Approved)
	assert.Equal(t, 100.0, expense.ApprovalRate)
}

func TestStatusBreakdown_TypeFilter(t *testing.T) {
	base := day("2024-03-04")
	reader := &mockReader{views: []port.RecordView{
		decided(entity.SubjectTypeTravel, "alice", entity.RecordStatusApproved, base, time.Hour),
		decided(entity.SubjectTypeExpense, "bob", entity.RecordStatusApproved, base, time.Hour),
	}}
	e := NewEngine(reader, nil)

	q := query("2024-03-01", "2024-03-07")
	q.Type = entity.SubjectTypeExpense
	b, err := e.StatusBreakdown(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 1, b.Overall.Total)
	assert.Zero(t, b.ByType[entity.SubjectTypeTravel].Total)
}

func TestStatusBreakdown_EmptyRangeHasZeroRates(t *testing.T) {
	e := NewEngine(&mockReader{}, nil)

	b, err := e.StatusBreakdown(context.Background(), query("2024-03-01", "2024-03-07"))
	require.NoError(t, err)

	assert.Zero(t, b.Overall.Total)
	assert.Zero(t, b.Overall.ApprovalRate)
	assert.Zero(t, b.Overall.AvgDecisionHours)
}

func TestApproverWorkload(t *testing.T) {
	base := day("2024-03-04")
	reader := &mockReader{views: []port.RecordView{
		decided(entity.SubjectTypeTravel, "bob", entity.RecordStatusApproved, base, 1*time.Hour),
		decided(entity.SubjectTypeTravel, "alice", entity.RecordStatusApproved, base, 2*time.Hour),
		decided(entity.SubjectTypeExpense, "alice", entity.RecordStatusRejected, base.Add(time.Hour), 4*time.Hour),
		decided(entity.SubjectTypeExpense, "carol", entity.RecordStatusApproved, base, 3*time.Hour),
		pending(entity.SubjectTypeTravel, "dave", base),
	}}
	e := NewEngine(reader, mockRoster{names: []string{"alice", "erin"}})

	w, err := e.ApproverWorkload(context.Background(), query("2024-03-01", "2024-03-07"))
	require.NoError(t, err)

	require.Len(t, w.Rows, 3, "dave has only a pending record and erin is not requested")
	assert.Equal(t, "alice", w.Rows[0].Approver)
	assert.Equal(t, 2, w.Rows[0].Total)
	assert.Equal(t, 1, w.Rows[0].Approved)
	assert.Equal(t, 1, w.Rows[0].Rejected)
	assert.Equal(t, 50.0, w.Rows[0].ApprovalRate)
	assert.InDelta(t, 3.0, w.Rows[0].AvgLatencyHours, 1e-9)
	assert.Equal(t, "bob", w.Rows[1].Approver, "ties sort by approver")
	assert.Equal(t, "carol", w.Rows[2].Approver)
}

func TestApproverWorkload_RosterZeroFill(t *testing.T) {
	base := day("2024-03-04")
	reader := &mockReader{views: []port.RecordView{
		decided(entity.SubjectTypeTravel, "alice", entity.RecordStatusApproved, base, time.Hour),
	}}
	e := NewEngine(reader, mockRoster{names: []string{"alice", "zed"}})

	q := query("2024-03-01", "2024-03-07")
	q.IncludeRoster = true
	w, err := e.ApproverWorkload(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, w.Rows, 2)
	assert.Equal(t, "zed", w.Rows[1].Approver)
	assert.Zero(t, w.Rows[1].Total)
	assert.Zero(t, w.Rows[1].ApprovalRate)
}

func TestApproverWorkload_RosterError(t *testing.T) {
	e := NewEngine(&mockReader{}, mockRoster{err: errors.New("directory down")})

	q := query("2024-03-01", "2024-03-07")
	q.IncludeRoster = true
	_, err := e.ApproverWorkload(context.Background(), q)
	assert.ErrorContains(t, err, "directory down")
}

func TestApproverWorkload_OmitsApproverWithoutDecisionsInRange(t *testing.T) {
	reader := &mockReader{views: []port.RecordView{
		decided(entity.SubjectTypeTravel, "x", entity.RecordStatusApproved, day("2024-01-10"), time.Hour),
		decided(entity.SubjectTypeTravel, "y", entity.RecordStatusApproved, day("2024-03-03"), time.Hour),
	}}
	e := NewEngine(reader, nil)

	w, err := e.ApproverWorkload(context.Background(), query("2024-03-01", "2024-03-07"))
	require.NoError(t, err)

	require.Len(t, w.Rows, 1)
	assert.Equal(t, "y", w.Rows[0].Approver)
}

func TestTrend_DailyIsDense(t *testing.T) {
	reader := &mockReader{views: []port.RecordView{
		decided(entity.SubjectTypeTravel, "a", entity.RecordStatusApproved, day("2024-03-02"), time.Hour),
		decided(entity.SubjectTypeTravel, "a", entity.RecordStatusRejected, day("2024-03-02"), 2*time.Hour),
		decided(entity.SubjectTypeTravel, "a", entity.RecordStatusApproved, day("2024-03-07"), 23*time.Hour),
		pending(entity.SubjectTypeTravel, "b", day("2024-03-03")),
	}}
	e := NewEngine(reader, nil)

	tr, err := e.Trend(context.Background(), query("2024-03-01", "2024-03-07"))
	require.NoError(t, err)

	require.Len(t, tr.Points, 7)
	assert.Equal(t, report.GranularityDay, tr.Granularity)
	counts := make([]int, 7)
	for i, p := range tr.Points {
		assert.Equal(t, day("2024-03-01").AddDate(0, 0, i), p.BucketStart)
		counts[i] = p.Count
	}
	assert.Equal(t, []int{0, 2, 0, 0, 0, 0, 1}, counts)
	assert.Equal(t, 1, tr.Points[1].Approved)
	assert.Equal(t, 1, tr.Points[1].Rejected)
}

func TestTrend_WeeklyAndMonthly(t *testing.T) {
	reader := &mockReader{views: []port.RecordView{
		decided(entity.SubjectTypeTravel, "a", entity.RecordStatusApproved, day("2024-01-02"), time.Hour),
		decided(entity.SubjectTypeTravel, "a", entity.RecordStatusApproved, day("2024-01-07"), time.Hour),
		decided(entity.SubjectTypeTravel, "a", entity.RecordStatusApproved, day("2024-01-29"), time.Hour),
	}}
	e := NewEngine(reader, nil)

	q := query("2024-01-01", "2024-02-04")
	q.Granularity = report.GranularityWeek
	tr, err := e.Trend(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, tr.Points, 5)
	assert.Equal(t, 2, tr.Points[0].Count)
	assert.Equal(t, 0, tr.Points[1].Count)
	assert.Equal(t, 1, tr.Points[4].Count)

	q.Granularity = report.GranularityMonth
	tr, err = e.Trend(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, tr.Points, 2)
	assert.Equal(t, 3, tr.Points[0].Count)
	assert.Equal(t, 0, tr.Points[1].Count)
}

// Over the same records, decided counts in the breakdown equal the summed workload.
func TestBreakdownMatchesWorkload(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	approvers := []string{"a", "b", "c", "d"}
	statuses := []entity.RecordStatus{entity.RecordStatusApproved, entity.RecordStatusRejected}

	var views []port.RecordView
	for i := 0; i < 300; i++ {
		at := day("2024-01-01").Add(time.Duration(rng.Intn(90*24)) * time.Hour)
		if rng.Intn(5) == 0 {
			views = append(views, pending(entity.SubjectTypeExpense, approvers[rng.Intn(4)], at))
			continue
		}
		views = append(views, decided(entity.SubjectTypeTravel, approvers[rng.Intn(4)], statuses[rng.Intn(2)], at, time.Duration(rng.Intn(100))*time.Hour))
	}
	e := NewEngine(&mockReader{views: views}, nil)
	q := query("2023-12-01", "2024-06-30")

	b, err := e.StatusBreakdown(context.Background(), q)
	require.NoError(t, err)
	w, err := e.ApproverWorkload(context.Background(), q)
	require.NoError(t, err)
	tr, err := e.Trend(context.Background(), q)
	require.NoError(t, err)

	trendTotal := 0
	for _, p := range tr.Points {
		trendTotal += p.Count
	}

	assert.Equal(t, b.Overall.Decided(), w.TotalDecisions())
	assert.Equal(t, b.Overall.Decided(), trendTotal)
	assert.Equal(t, len(views), b.Overall.Total)
}
