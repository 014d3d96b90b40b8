package http

import (
	"github.com/garyjia/travel-approval/internal/application/workflow"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/report"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
	"github.com/garyjia/travel-approval/pkg/utils"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DecisionRequest is the body of POST /api/subjects/:id/decisions
type DecisionRequest struct {
	ActorID  string        `json:"actorId"`
	Level    int           `json:"level"`
	Action   entity.Action `json:"action"`
	Comments string        `json:"comments"`
}

// SubjectResponse is a subject with its replayed projection
type SubjectResponse struct {
	Subject    *entity.Subject     `json:"subject"`
	Projection domainwf.Projection `json:"projection"`
}

// VerifyResponse wraps the replay verification result
type VerifyResponse struct {
	Checked   int               `json:"checked"`
	Divergent map[string]string `json:"divergent"`
}

func toSubjectResponse(res *workflow.Result) SubjectResponse {
	return SubjectResponse{Subject: res.Subject, Projection: res.Projection}
}

func roundCounts(c report.StatusCounts) report.StatusCounts {
	c.ApprovalRate = utils.Round2(c.ApprovalRate)
	c.AvgDecisionHours = utils.Round2(c.AvgDecisionHours)
	return c
}

func roundBreakdown(b *report.StatusBreakdown) *report.StatusBreakdown {
	out := &report.StatusBreakdown{
		Overall: roundCounts(b.Overall),
		ByType:  make(map[entity.SubjectType]report.StatusCounts, len(b.ByType)),
	}
	for t, c := range b.ByType {
		out.ByType[t] = roundCounts(c)
	}
	return out
}

func roundWorkload(w *report.ApproverWorkload) *report.ApproverWorkload {
	rows := make([]report.WorkloadRow, len(w.Rows))
	for i, r := range w.Rows {
		r.ApprovalRate = utils.Round2(r.ApprovalRate)
		r.AvgLatencyHours = utils.Round2(r.AvgLatencyHours)
		rows[i] = r
	}
	return &report.ApproverWorkload{Rows: rows}
}

func roundOverview(ov *report.Overview) *report.Overview {
	out := *ov
	out.Breakdown = *roundBreakdown(&ov.Breakdown)
	out.Workload = *roundWorkload(&ov.Workload)
	return &out
}
