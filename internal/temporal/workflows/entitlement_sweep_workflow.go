package workflows

import (
	"time"

	"github.com/flexprice/membership/internal/api/dto"
	"github.com/flexprice/membership/internal/temporal/models"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// EntitlementSweepWorkflow runs a single reconciliation sweep. Started with a cron schedule,
// each tick is its own run; overlapping sweeps are safe because every write is a compare-and-set.
func EntitlementSweepWorkflow(ctx workflow.Context, input models.SweepWorkflowInput) (*models.SweepWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting entitlement sweep workflow", "triggered_by", input.TriggeredBy)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: models.DefaultSweepActivityTimeout,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    models.DefaultMaximumAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var summary dto.SweepSummary
	if err := workflow.ExecuteActivity(ctx, models.ActivitySweep, input).Get(ctx, &summary); err != nil {
		logger.Error("Entitlement sweep failed", "error", err)
		return nil, err
	}

	return &models.SweepWorkflowResult{Summary: &summary}, nil
}
