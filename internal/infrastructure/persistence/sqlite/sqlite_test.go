package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/application/workflow"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
	"github.com/garyjia/travel-approval/pkg/database"
)

type fixture struct {
	db       *DB
	subjects *SubjectRepository
	records  *RecordReader
	policies *PolicyRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	conn, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "approval.db"),
		MaxOpenConns: 4,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = database.NewMigrator(conn, logger).RunMigrations(context.Background(), "../../../../migrations")
	require.NoError(t, err)

	db := NewDB(conn.DB, logger)
	return &fixture{
		db:       db,
		subjects: NewSubjectRepository(db, logger),
		records:  NewRecordReader(db, logger),
		policies: NewPolicyRepository(db, logger),
	}
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(h int) time.Time { return t0.Add(time.Duration(h) * time.Hour) }

func pendingSubject(id string, typ entity.SubjectType, approvers ...string) *entity.Subject {
	s := entity.NewSubject(typ, "emp-1", "Trip "+id, 1200, t0)
	s.ID = id
	submitted := t0
	s.SubmittedAt = &submitted
	s.Status = entity.SubjectStatusPending
	for i, a := range approvers {
		s.Chain = append(s.Chain, entity.ChainStep{Level: i + 1, Name: fmt.Sprintf("L%d", i+1), Approver: a, TimeoutHours: 24 * (i + 1)})
	}
	s.Approvals = []entity.ApprovalRecord{{Approver: approvers[0], Level: 1, Status: entity.RecordStatusPending, ActivatedAt: t0}}
	return s
}

func decide(s *entity.Subject, level int, status entity.RecordStatus, when time.Time) {
	r := s.Record(level)
	r.Status = status
	r.DecidedAt = &when
}

func TestSubjectRepository_CreateLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := entity.NewSubject(entity.SubjectTypeExpense, "emp-7", "Client dinner", 480.5, t0)
	s.Department = "sales"
	require.NoError(t, f.subjects.Create(ctx, s))

	got, err := f.subjects.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Title, got.Title)
	assert.Equal(t, s.Amount, got.Amount)
	assert.Equal(t, "sales", got.Department)
	assert.Equal(t, entity.SubjectStatusDraft, got.Status)
	assert.True(t, got.CreatedAt.Equal(t0))
	assert.Nil(t, got.SubmittedAt)
	assert.Empty(t, got.Approvals)
	assert.Empty(t, got.Chain)

	_, err = f.subjects.Load(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestSubjectRepository_SaveVersioning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := pendingSubject("s-1", entity.SubjectTypeTravel, "mgr-1", "head-1")
	require.NoError(t, f.subjects.Create(ctx, s))

	decide(s, 1, entity.RecordStatusApproved, at(2))
	s.Approvals = append(s.Approvals, entity.ApprovalRecord{Approver: "head-1", Level: 2, Status: entity.RecordStatusPending, ActivatedAt: at(2)})
	require.NoError(t, f.subjects.Save(ctx, s, 0))
	assert.Equal(t, int64(1), s.Version)

	stale := s.Clone()
	stale.Version = 0
	err := f.subjects.Save(ctx, stale, 0)
	assert.ErrorIs(t, err, entity.ErrVersionConflict)

	got, err := f.subjects.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	require.Len(t, got.Approvals, 2)
	assert.Equal(t, entity.RecordStatusApproved, got.Approvals[0].Status)
	require.NotNil(t, got.Approvals[0].DecidedAt)
	assert.True(t, got.Approvals[0].DecidedAt.Equal(at(2)))
	assert.Equal(t, 2, got.Chain[1].Level)
	assert.Equal(t, 48, got.Chain[1].TimeoutHours)

	p, err := domainwf.Verify(got)
	require.NoError(t, err)
	assert.Equal(t, 2, p.ActiveLevel)

	err = f.subjects.Save(ctx, pendingSubject("ghost", entity.SubjectTypeTravel, "x"), 0)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestSubjectRepository_ConcurrentSaveOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.subjects.Create(ctx, pendingSubject("s-1", entity.SubjectTypeTravel, "mgr-1")))

	const writers = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.subjects.Load(ctx, "s-1")
			if err != nil {
				return
			}
			s.Title = fmt.Sprintf("writer %d", i)
			err = f.subjects.Save(ctx, s, 0)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, entity.ErrVersionConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, conflicts)
}

func TestSubjectRepository_ListPendingFor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.subjects.Create(ctx, pendingSubject("a", entity.SubjectTypeTravel, "mgr-1")))
	require.NoError(t, f.subjects.Create(ctx, pendingSubject("b", entity.SubjectTypeExpense, "mgr-2")))
	done := pendingSubject("c", entity.SubjectTypeTravel, "mgr-1")
	decide(done, 1, entity.RecordStatusRejected, at(1))
	done.Status = entity.SubjectStatusRejected
	require.NoError(t, f.subjects.Create(ctx, done))

	got, err := f.subjects.ListPendingFor(ctx, "mgr-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	ids, err := f.subjects.ListIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
}

func TestRecordReader_ListRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// decided on day 1, created day 1
	a := pendingSubject("a", entity.SubjectTypeTravel, "mgr-1")
	decide(a, 1, entity.RecordStatusApproved, at(3))
	a.Status = entity.SubjectStatusApproved
	// decided two days later
	b := pendingSubject("b", entity.SubjectTypeExpense, "fin-1")
	decide(b, 1, entity.RecordStatusRejected, at(50))
	b.Status = entity.SubjectStatusRejected
	// still pending, placed by creation
	c := pendingSubject("c", entity.SubjectTypeTravel, "mgr-1", "head-1")

	for _, s := range []*entity.Subject{a, b, c} {
		require.NoError(t, f.subjects.Create(ctx, s))
	}

	all, err := f.records.ListRecords(ctx, port.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	day1 := port.RecordFilter{From: t0.Truncate(24 * time.Hour), To: t0.Truncate(24 * time.Hour).Add(24 * time.Hour)}
	got, err := f.records.ListRecords(ctx, day1)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, v := range got {
		ids = append(ids, v.SubjectID)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, ids)

	day1.Type = entity.SubjectTypeTravel
	day1.PendingOnly = true
	got, err = f.records.ListRecords(ctx, day1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].SubjectID)
	assert.Equal(t, 24, got[0].TimeoutHours)
	assert.True(t, got[0].SubjectCreatedAt.Equal(t0))
	assert.Nil(t, got[0].Record.DecidedAt)
}

func TestPolicyRepository_SeededAndCreated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	travel, err := f.policies.ListActive(ctx, entity.SubjectTypeTravel)
	require.NoError(t, err)
	require.Len(t, travel, 3)
	assert.Equal(t, "travel-large", travel[0].ID)
	assert.Nil(t, travel[0].MaxAmount)
	assert.Len(t, travel[0].Steps, 3)
	assert.Equal(t, entity.ApproverTypeFinance, travel[0].Steps[2].ApproverType)

	limit := 100.0
	require.NoError(t, f.policies.Create(ctx, &entity.Policy{
		ID:          "all-small",
		Name:        "Small anything",
		AppliesTo:   entity.PolicyScopeAll,
		MaxAmount:   &limit,
		Departments: []string{"ops"},
		Priority:    5,
		Active:      true,
		Steps:       []entity.PolicyStep{{Level: 1, ApproverType: entity.ApproverTypeSpecificUser, ApproverID: "ops-lead"}},
		CreatedAt:   t0,
	}))

	expense, err := f.policies.ListActive(ctx, entity.SubjectTypeExpense)
	require.NoError(t, err)
	require.Len(t, expense, 2)
	assert.Equal(t, "expense-standard", expense[0].ID)
	assert.Equal(t, []string{"ops"}, expense[1].Departments)
	require.NotNil(t, expense[1].MaxAmount)
	assert.Equal(t, 100.0, *expense[1].MaxAmount)

	all, err := f.policies.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

type staticResolver struct{}

func (staticResolver) ResolveApprover(ctx context.Context, step entity.PolicyStep, s *entity.Subject) (string, error) {
	return string(step.ApproverType) + "-of-" + s.OwnerID, nil
}

func TestWorkflowEngineOnSQLite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	engine := workflow.NewEngine(f.subjects, f.policies, staticResolver{})

	s := entity.NewSubject(entity.SubjectTypeTravel, "emp-1", "Conference", 7500, t0)
	require.NoError(t, f.subjects.Create(ctx, s))

	res, err := engine.Submit(ctx, s.ID, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "travel-elevated", res.Subject.PolicyID)
	require.Len(t, res.Subject.Chain, 2)

	_, err = engine.ApplyDecision(ctx, entity.Decision{SubjectID: s.ID, ActorID: "manager-of-emp-1", Level: 1, Action: entity.ActionApprove})
	require.NoError(t, err)
	res, err = engine.ApplyDecision(ctx, entity.Decision{SubjectID: s.ID, ActorID: "department_head-of-emp-1", Level: 2, Action: entity.ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, entity.SubjectStatusApproved, res.Subject.Status)

	loaded, err := engine.Project(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateApproved, loaded.Projection.Status)
	assert.Len(t, loaded.Subject.Approvals, 2)
}

func TestPolicyRepository_GetUpdateDeactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seeded, err := f.policies.Get(ctx, "travel-elevated")
	require.NoError(t, err)
	assert.True(t, seeded.UpdatedAt.Equal(seeded.CreatedAt))
	require.NotNil(t, seeded.MaxAmount)
	assert.Equal(t, 10000.0, *seeded.MaxAmount)

	s := entity.NewSubject(entity.SubjectTypeTravel, "emp-1", "Summit", 7500, t0)
	require.NoError(t, f.subjects.Create(ctx, s))
	engine := workflow.NewEngine(f.subjects, f.policies, staticResolver{})
	_, err = engine.Submit(ctx, s.ID, "emp-1")
	require.NoError(t, err)

	seeded.Name = "Travel 5000 to 10000, finance only"
	seeded.MaxAmount = nil
	seeded.Steps = []entity.PolicyStep{{Level: 1, Name: "Finance", ApproverType: entity.ApproverTypeFinance}}
	seeded.UpdatedAt = at(5)
	require.NoError(t, f.policies.Update(ctx, seeded))

	got, err := f.policies.Get(ctx, "travel-elevated")
	require.NoError(t, err)
	assert.Equal(t, "Travel 5000 to 10000, finance only", got.Name)
	assert.Nil(t, got.MaxAmount)
	require.Len(t, got.Steps, 1)
	assert.True(t, got.UpdatedAt.Equal(at(5)))
	assert.True(t, got.CreatedAt.Equal(seeded.CreatedAt))

	require.NoError(t, f.policies.Deactivate(ctx, "travel-elevated", at(6)))
	active, err := f.policies.ListActive(ctx, entity.SubjectTypeTravel)
	require.NoError(t, err)
	for _, p := range active {
		assert.NotEqual(t, "travel-elevated", p.ID)
	}
	got, err = f.policies.Get(ctx, "travel-elevated")
	require.NoError(t, err)
	assert.False(t, got.Active)

	// The submitted subject keeps the two-level chain it was given.
	loaded, err := f.subjects.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "travel-elevated", loaded.PolicyID)
	assert.Len(t, loaded.Chain, 2)

	_, err = f.policies.Get(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.ErrorIs(t, f.policies.Update(ctx, &entity.Policy{ID: "missing", UpdatedAt: t0}), entity.ErrNotFound)
	assert.ErrorIs(t, f.policies.Deactivate(ctx, "missing", t0), entity.ErrNotFound)
}
