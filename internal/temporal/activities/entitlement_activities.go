package activities

import (
	"context"

	"github.com/flexprice/membership/internal/api/dto"
	"github.com/flexprice/membership/internal/service"
	"github.com/flexprice/membership/internal/temporal/models"
	"github.com/flexprice/membership/internal/types"
	"go.temporal.io/sdk/activity"
)

// EntitlementActivities exposes reconciliation to workflows
type EntitlementActivities struct {
	reconciler service.ReconcilerService
}

func NewEntitlementActivities(reconciler service.ReconcilerService) *EntitlementActivities {
	return &EntitlementActivities{reconciler: reconciler}
}

// SweepActivity runs one reconciliation sweep. Registered as "SweepActivity".
func (a *EntitlementActivities) SweepActivity(ctx context.Context, input models.SweepWorkflowInput) (*dto.SweepSummary, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Starting entitlement sweep", "triggered_by", input.TriggeredBy)

	ctx = types.SetUserID(ctx, types.DefaultUserID)
	summary, err := a.reconciler.Sweep(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("Entitlement sweep finished",
		"processed", summary.Processed,
		"renewed", summary.Renewed,
		"expired", summary.Expired,
		"errored", summary.Errored,
	)
	return summary, nil
}
