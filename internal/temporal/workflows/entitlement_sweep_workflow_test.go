package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/flexprice/membership/internal/api/dto"
	"github.com/flexprice/membership/internal/temporal/activities"
	"github.com/flexprice/membership/internal/temporal/models"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

type stubReconciler struct {
	calls   int
	summary *dto.SweepSummary
	err     error
}

func (r *stubReconciler) Sweep(context.Context) (*dto.SweepSummary, error) {
	r.calls++
	return r.summary, r.err
}

func (r *stubReconciler) CheckRenewal(context.Context, string) (*dto.RenewalCheckResponse, error) {
	return nil, errors.New("not used")
}

type SweepWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env        *testsuite.TestWorkflowEnvironment
	reconciler *stubReconciler
}

func TestSweepWorkflow(t *testing.T) {
	suite.Run(t, new(SweepWorkflowSuite))
}

func (s *SweepWorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.reconciler = &stubReconciler{}

	s.env.RegisterWorkflowWithOptions(EntitlementSweepWorkflow, workflow.RegisterOptions{
		Name: models.WorkflowEntitlementSweep,
	})
	s.env.RegisterActivityWithOptions(activities.NewEntitlementActivities(s.reconciler).SweepActivity, activity.RegisterOptions{
		Name: models.ActivitySweep,
	})
}

func (s *SweepWorkflowSuite) TearDownTest() {
	s.env.AssertExpectations(s.T())
}

func (s *SweepWorkflowSuite) TestReturnsSummary() {
	s.reconciler.summary = &dto.SweepSummary{Processed: 3, Renewed: 2, Expired: 1}

	s.env.ExecuteWorkflow(EntitlementSweepWorkflow, models.SweepWorkflowInput{TriggeredBy: "test"})

	s.True(s.env.IsWorkflowCompleted())
	s.Require().NoError(s.env.GetWorkflowError())

	var result models.SweepWorkflowResult
	s.Require().NoError(s.env.GetWorkflowResult(&result))
	s.Equal(3, result.Summary.Processed)
	s.Equal(2, result.Summary.Renewed)
	s.Equal(1, s.reconciler.calls)
}

func (s *SweepWorkflowSuite) TestRetriesFailedSweep() {
	s.reconciler.err = errors.New("store unavailable")

	s.env.ExecuteWorkflow(EntitlementSweepWorkflow, models.SweepWorkflowInput{TriggeredBy: "test"})

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.Equal(models.DefaultMaximumAttempts, s.reconciler.calls)
}
