package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/service"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/report"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
	"github.com/garyjia/travel-approval/internal/infrastructure/directory"
)

func testConfig(t *testing.T, driver string) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Driver = driver
	cfg.Database.Path = filepath.Join(t.TempDir(), "approvals.db")
	cfg.Database.MigrationsDir = "../../migrations"
	cfg.Scheduler.OverdueSchedule = "@every 1h"
	cfg.Approvers = directory.Config{
		Managers:        map[string]string{"u-1": "mgr-1"},
		DepartmentHeads: map[string]string{"sales": "head-1"},
		Finance:         "fin-1",
	}
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Driver = "postgres"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	for _, driver := range []string{DriverMemory, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			c, err := NewContainer(testConfig(t, driver), zap.NewNop())
			require.NoError(t, err)

			require.NoError(t, c.Start(ctx))
			assert.True(t, c.Ready())
			assert.Error(t, c.Start(ctx))

			health := c.Health(ctx)
			assert.True(t, health.Overall)
			assert.Equal(t, 2, c.Workers().GetWorkerCount())

			svc := c.Services()
			subject, err := svc.Approval.CreateSubject(ctx, service.CreateSubjectRequest{
				Type:       "travel",
				OwnerID:    "u-1",
				Title:      "Customer visit",
				Amount:     1200,
				Department: "sales",
			})
			require.NoError(t, err)

			res, err := svc.Approval.Submit(ctx, subject.ID, service.SubmitRequest{ActorID: "u-1"})
			require.NoError(t, err)
			require.Equal(t, domainwf.StatePending, res.Projection.Status)
			require.Equal(t, "mgr-1", res.Subject.Chain[0].Approver)

			pending, err := svc.Approval.ListPending(ctx, "mgr-1")
			require.NoError(t, err)
			require.Len(t, pending, 1)

			res, err = svc.Approval.Decide(ctx, entity.Decision{
				SubjectID: subject.ID,
				ActorID:   "mgr-1",
				Level:     1,
				Action:    entity.ActionApprove,
			})
			require.NoError(t, err)
			assert.Equal(t, domainwf.StateApproved, res.Projection.Status)

			today := report.Day(time.Now())
			breakdown, err := svc.Report.StatusBreakdown(ctx, report.Query{Start: today.AddDate(0, 0, -1), End: today.AddDate(0, 0, 1)})
			require.NoError(t, err)
			assert.Equal(t, 1, breakdown.Overall.Approved)
			assert.Equal(t, 100.0, breakdown.Overall.ApprovalRate)

			verify, err := svc.Approval.VerifyAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, verify.Checked)
			assert.Empty(t, verify.Divergent)

			policies, err := svc.Policy.List(ctx)
			require.NoError(t, err)
			assert.NotEmpty(t, policies)

			require.NoError(t, c.Close())
			assert.False(t, c.Ready())
			assert.Error(t, c.Close())
			assert.Error(t, c.Start(ctx))
		})
	}
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("subject_id", "s-1", 42, "skipped", "error", assert.AnError, "dangling")

	require.Len(t, fields, 2)
	assert.Equal(t, "subject_id", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
}
