package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/policy"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/event"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

// DefaultMaxAttempts bounds retries after a version conflict
const DefaultMaxAttempts = 3

type engineImpl struct {
	subjects   port.SubjectRepository
	policies   port.PolicyRepository
	resolver   port.ApproverResolver
	directory  port.ApproverDirectory
	dispatcher dispatcher.Dispatcher
	recorder   Recorder
	logger     Logger

	maxAttempts int
	now         func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the dispatcher that receives events after each commit
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithDirectory sets the identity oracle consulted when the actor is not the assignee
func WithDirectory(d port.ApproverDirectory) EngineOption {
	return func(e *engineImpl) {
		e.directory = d
	}
}

// WithMaxAttempts sets how many times a conflicting write is attempted in total
func WithMaxAttempts(n int) EngineOption {
	return func(e *engineImpl) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) EngineOption {
	return func(e *engineImpl) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithLogger sets the logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	subjects port.SubjectRepository,
	policies port.PolicyRepository,
	resolver port.ApproverResolver,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		subjects:    subjects,
		policies:    policies,
		resolver:    resolver,
		recorder:    nopRecorder{},
		logger:      nopLogger{},
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Submit resolves and freezes the chain, then activates level 1
func (e *engineImpl) Submit(ctx context.Context, subjectID, actorID string) (*Result, error) {
	res, err := e.retry(ctx, subjectID, func(ctx context.Context) (*Result, error) {
		return e.submitOnce(ctx, subjectID, actorID)
	})
	if err != nil {
		e.recorder.ObserveSubmission(Outcome(err))
		return nil, err
	}

	e.recorder.ObserveSubmission(string(res.Projection.Status))
	e.logger.Info("Subject submitted",
		"subject_id", subjectID,
		"levels", res.Subject.Levels(),
		"policy_id", res.Subject.PolicyID,
		"status", res.Projection.Status,
	)

	submitted := event.NewSubjectSubmitted(res.Subject.ID, res.Subject.OwnerID, string(res.Subject.Type), res.Subject.Title, res.Subject.Levels())
	e.emit(ctx, submitted)
	e.emit(ctx, e.progressEvent(res, submitted.CorrelationID))

	return res, nil
}

// ApplyDecision approves or rejects the active level
func (e *engineImpl) ApplyDecision(ctx context.Context, d entity.Decision) (*Result, error) {
	start := e.now()

	if err := validateDecision(d); err != nil {
		e.recorder.ObserveDecision(string(d.Action), Outcome(err), 0, 0)
		return nil, err
	}

	res, err := e.retry(ctx, d.SubjectID, func(ctx context.Context) (*Result, error) {
		return e.decideOnce(ctx, d)
	})
	elapsed := e.now().Sub(start)
	if err != nil {
		e.recorder.ObserveDecision(string(d.Action), Outcome(err), e.maxAttempts, elapsed)
		return nil, err
	}

	e.recorder.ObserveDecision(string(d.Action), string(res.Projection.Status), res.Attempts, elapsed)
	e.logger.Info("Decision applied",
		"subject_id", d.SubjectID,
		"level", d.Level,
		"action", d.Action,
		"actor_id", d.ActorID,
		"status", res.Projection.Status,
		"active_level", res.Projection.ActiveLevel,
		"attempts", res.Attempts,
	)

	e.emit(ctx, e.progressEvent(res, ""))

	return res, nil
}

// Project loads a subject and verifies its stored status against the replay
func (e *engineImpl) Project(ctx context.Context, subjectID string) (*Result, error) {
	s, err := e.subjects.Load(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("load subject %s: %w", subjectID, err)
	}

	p, err := domainwf.Verify(s)
	if err != nil {
		e.logger.Error("Projection diverges from records", "subject_id", subjectID, "error", err)
		return nil, fmt.Errorf("verify subject %s: %w", subjectID, err)
	}

	return &Result{Subject: s, Projection: p}, nil
}

// retry re-runs op while it fails with a version conflict, up to maxAttempts in total.
// Every attempt re-reads and re-validates, so a stale level turns into InvalidTransition.
func (e *engineImpl) retry(ctx context.Context, subjectID string, op func(context.Context) (*Result, error)) (*Result, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := op(ctx)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}
		if !errors.Is(err, entity.ErrVersionConflict) {
			return nil, err
		}

		lastErr = err
		e.logger.Info("Version conflict, retrying", "subject_id", subjectID, "attempt", attempt)
	}

	e.logger.Error("Giving up after version conflicts", "subject_id", subjectID, "attempts", e.maxAttempts)
	return nil, lastErr
}

func (e *engineImpl) submitOnce(ctx context.Context, subjectID, actorID string) (*Result, error) {
	s, err := e.subjects.Load(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("load subject %s: %w", subjectID, err)
	}
	if s.OwnerID != actorID {
		return nil, fmt.Errorf("%w: %s does not own subject %s", domainwf.ErrNotOwner, actorID, subjectID)
	}
	if s.Status != entity.SubjectStatusDraft {
		return nil, fmt.Errorf("%w: subject %s is already %s", domainwf.ErrInvalidTransition, subjectID, s.Status)
	}

	policies, err := e.policies.ListActive(ctx, s.Type)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	matched, err := policy.Match(policies, s)
	if err != nil {
		return nil, err
	}
	chain, err := policy.BuildChain(ctx, e.resolver, matched, s)
	if err != nil {
		return nil, err
	}

	expected := s.Version
	p, err := domainwf.Submit(ctx, s, chain, e.now())
	if err != nil {
		return nil, err
	}
	s.PolicyID = matched.ID

	if err := e.subjects.Save(ctx, s, expected); err != nil {
		return nil, fmt.Errorf("save subject %s: %w", subjectID, err)
	}

	return &Result{Subject: s, Projection: p}, nil
}

func (e *engineImpl) decideOnce(ctx context.Context, d entity.Decision) (*Result, error) {
	s, err := e.subjects.Load(ctx, d.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("load subject %s: %w", d.SubjectID, err)
	}

	rec, err := domainwf.ActiveRecord(s, d.Level)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, d.ActorID, s, rec); err != nil {
		return nil, err
	}

	expected := s.Version
	p, err := domainwf.Decide(ctx, s, d, e.now())
	if err != nil {
		return nil, err
	}

	if err := e.subjects.Save(ctx, s, expected); err != nil {
		return nil, fmt.Errorf("save subject %s: %w", d.SubjectID, err)
	}

	return &Result{Subject: s, Projection: p}, nil
}

// authorize accepts the record's assignee, then falls back to the directory for delegates
func (e *engineImpl) authorize(ctx context.Context, actorID string, s *entity.Subject, rec *entity.ApprovalRecord) error {
	if rec.Approver == actorID {
		return nil
	}

	if e.directory != nil {
		ok, err := e.directory.IsAssignedApprover(ctx, actorID, s, rec.Level)
		if err != nil {
			return fmt.Errorf("check approver %s: %w", actorID, err)
		}
		if ok {
			return nil
		}
	}

	return fmt.Errorf("%w: %s may not decide level %d of subject %s", domainwf.ErrUnauthorizedApprover, actorID, rec.Level, s.ID)
}

func (e *engineImpl) progressEvent(res *Result, correlationID string) *event.Event {
	s := res.Subject
	if correlationID == "" {
		correlationID = s.ID
	}

	if res.Projection.Status == domainwf.StatePending {
		level := res.Projection.ActiveLevel
		approver := ""
		if rec := s.Record(level); rec != nil {
			approver = rec.Approver
		}
		return event.NewApprovalAdvanced(s.ID, level, approver, correlationID)
	}

	return event.NewApprovalTerminal(s.ID, string(res.Projection.Status), s.OwnerID, correlationID)
}

func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil || evt == nil {
		return
	}
	e.dispatcher.DispatchAsync(ctx, evt)
}

func validateDecision(d entity.Decision) error {
	switch {
	case d.SubjectID == "":
		return fmt.Errorf("%w: subjectId is required", entity.ErrInvalidArgument)
	case d.ActorID == "":
		return fmt.Errorf("%w: actorId is required", entity.ErrInvalidArgument)
	case d.Level < 1:
		return fmt.Errorf("%w: level must be positive", entity.ErrInvalidArgument)
	}
	if _, ok := domainwf.TriggerFor(d.Action); !ok {
		return fmt.Errorf("%w: unknown action %q", entity.ErrInvalidArgument, d.Action)
	}
	return nil
}

// Outcome names an error kind for metrics and logs
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domainwf.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domainwf.ErrUnauthorizedApprover), errors.Is(err, domainwf.ErrNotOwner):
		return "unauthorized"
	case errors.Is(err, entity.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, entity.ErrNotFound):
		return "not_found"
	case errors.Is(err, entity.ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "error"
	}
}
