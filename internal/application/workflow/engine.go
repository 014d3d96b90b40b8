package workflow

import (
	"context"
	"time"

	"github.com/garyjia/travel-approval/internal/domain/entity"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

// Engine applies submissions and decisions to subjects, one committed change at a time per subject
type Engine interface {
	// Submit resolves and freezes the approval chain of a draft subject and activates level 1
	Submit(ctx context.Context, subjectID, actorID string) (*Result, error)

	// ApplyDecision approves or rejects the active level of a subject
	ApplyDecision(ctx context.Context, decision entity.Decision) (*Result, error)

	// Project loads a subject and replays its records
	Project(ctx context.Context, subjectID string) (*Result, error)
}

// Result is the subject after an operation together with its replayed projection
type Result struct {
	Subject    *entity.Subject     `json:"subject"`
	Projection domainwf.Projection `json:"projection"`
	Attempts   int                 `json:"-"`
}

// Recorder receives workflow measurements
type Recorder interface {
	ObserveSubmission(outcome string)
	ObserveDecision(action, outcome string, attempts int, elapsed time.Duration)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopRecorder struct{}

func (nopRecorder) ObserveSubmission(string)                           {}
func (nopRecorder) ObserveDecision(string, string, int, time.Duration) {}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
