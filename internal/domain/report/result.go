package report

import (
	"time"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// StatusCounts counts records per status. ApprovalRate is a percentage of decided
// records; AvgDecisionHours is the mean latency of decided records. Both are unrounded.
type StatusCounts struct {
	Pending          int     `json:"pending"`
	Approved         int     `json:"approved"`
	Rejected         int     `json:"rejected"`
	Total            int     `json:"total"`
	ApprovalRate     float64 `json:"approvalRate"`
	AvgDecisionHours float64 `json:"avgDecisionHours"`
}

// Decided returns approved plus rejected
func (c StatusCounts) Decided() int {
	return c.Approved + c.Rejected
}

// StatusBreakdown is the status-breakdown result
type StatusBreakdown struct {
	Overall StatusCounts                        `json:"overall"`
	ByType  map[entity.SubjectType]StatusCounts `json:"byType"`
}

// WorkloadRow summarizes one approver's decisions
type WorkloadRow struct {
	Approver        string  `json:"approver"`
	Total           int     `json:"total"`
	Approved        int     `json:"approved"`
	Rejected        int     `json:"rejected"`
	ApprovalRate    float64 `json:"approvalRate"`
	AvgLatencyHours float64 `json:"avgLatencyHours"`
}

// ApproverWorkload is the approver-workload result, sorted by total descending then approver
type ApproverWorkload struct {
	Rows []WorkloadRow `json:"rows"`
}

// TotalDecisions sums Total over all rows
func (w *ApproverWorkload) TotalDecisions() int {
	n := 0
	for _, r := range w.Rows {
		n += r.Total
	}
	return n
}

// TrendPoint is one bucket of a dense trend
type TrendPoint struct {
	BucketStart time.Time `json:"bucketStart"`
	Count       int       `json:"count"`
	Approved    int       `json:"approved"`
	Rejected    int       `json:"rejected"`
}

// Trend is the trend result, ascending by bucket start with no gaps
type Trend struct {
	Granularity Granularity  `json:"granularity"`
	Points      []TrendPoint `json:"points"`
}

// Overview bundles the three results computed from one snapshot
type Overview struct {
	Query       Query            `json:"query"`
	Breakdown   StatusBreakdown  `json:"statusBreakdown"`
	Workload    ApproverWorkload `json:"approverWorkload"`
	Trend       Trend            `json:"trend"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// Rate returns part/whole as a percentage, or 0 when whole is 0
func Rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
