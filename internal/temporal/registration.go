package temporal

import (
	"github.com/flexprice/membership/internal/service"
	"github.com/flexprice/membership/internal/temporal/activities"
	"github.com/flexprice/membership/internal/temporal/models"
	"github.com/flexprice/membership/internal/temporal/workflows"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// RegisterWorkflowsAndActivities registers the entitlement workflows and activities with w
func RegisterWorkflowsAndActivities(w worker.Registry, reconciler service.ReconcilerService) {
	w.RegisterWorkflowWithOptions(workflows.EntitlementSweepWorkflow, workflow.RegisterOptions{
		Name: models.WorkflowEntitlementSweep,
	})

	entitlementActivities := activities.NewEntitlementActivities(reconciler)
	w.RegisterActivityWithOptions(entitlementActivities.SweepActivity, activity.RegisterOptions{
		Name: models.ActivitySweep,
	})
}
