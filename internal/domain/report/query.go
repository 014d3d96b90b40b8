package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// ErrInvalidRange is returned when a query's start date is after its end date
var ErrInvalidRange = errors.New("invalid range")

// DateLayout is the calendar-date format accepted by queries
const DateLayout = "2006-01-02"

// Kind tags which result a query asks for
type Kind string

const (
	KindStatusBreakdown  Kind = "status-breakdown"
	KindApproverWorkload Kind = "approver-workload"
	KindTrend            Kind = "trend"
	KindOverview         Kind = "overview"
)

// IsValid reports whether k is a known result kind
func (k Kind) IsValid() bool {
	switch k {
	case KindStatusBreakdown, KindApproverWorkload, KindTrend, KindOverview:
		return true
	default:
		return false
	}
}

// Query scopes an aggregation. Start and End are calendar dates in UTC and both
// are inclusive. An empty Type means every subject type.
type Query struct {
	Start         time.Time          `json:"startDate"`
	End           time.Time          `json:"endDate"`
	Type          entity.SubjectType `json:"type,omitempty"`
	Granularity   Granularity        `json:"granularity,omitempty"`
	IncludeRoster bool               `json:"includeRoster,omitempty"`
}

// ParseQuery builds a query from raw strings as they arrive from HTTP or the CLI
func ParseQuery(start, end, subjectType, granularity string) (Query, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return Query{}, fmt.Errorf("%w: startDate %q: %v", entity.ErrInvalidArgument, start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return Query{}, fmt.Errorf("%w: endDate %q: %v", entity.ErrInvalidArgument, end, err)
	}
	q := Query{
		Start:       s,
		End:         e,
		Type:        entity.SubjectType(subjectType),
		Granularity: Granularity(granularity),
	}
	return q.Normalize(), q.Validate()
}

// Normalize truncates both bounds to UTC midnight and fills the default granularity
func (q Query) Normalize() Query {
	q.Start = Day(q.Start)
	q.End = Day(q.End)
	if q.Granularity == "" {
		q.Granularity = GranularityDay
	}
	return q
}

// Validate checks the range, type and granularity. It never clamps.
func (q Query) Validate() error {
	if q.Start.IsZero() || q.End.IsZero() {
		return fmt.Errorf("%w: startDate and endDate are required", entity.ErrInvalidArgument)
	}
	if q.Type != "" && !q.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", entity.ErrInvalidArgument, q.Type)
	}
	if q.Granularity != "" && !q.Granularity.IsValid() {
		return fmt.Errorf("%w: unknown granularity %q", entity.ErrInvalidArgument, q.Granularity)
	}
	if Day(q.Start).After(Day(q.End)) {
		return fmt.Errorf("%w: startDate %s is after endDate %s", ErrInvalidRange,
			q.Start.Format(DateLayout), q.End.Format(DateLayout))
	}
	return nil
}

// Window returns the half-open instant range [from, to) covering the inclusive dates
func (q Query) Window() (from, to time.Time) {
	return Day(q.Start), Day(q.End).AddDate(0, 0, 1)
}

// Contains reports whether t falls inside the query window
func (q Query) Contains(t time.Time) bool {
	from, to := q.Window()
	return !t.Before(from) && t.Before(to)
}

// Matches reports whether a subject type passes the type filter
func (q Query) Matches(t entity.SubjectType) bool {
	return q.Type == "" || q.Type == t
}

// Day truncates t to midnight UTC
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
