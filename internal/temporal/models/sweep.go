package models

import (
	"time"

	"github.com/flexprice/membership/internal/api/dto"
)

const (
	// EntitlementSweepWorkflowID is fixed so only one cron schedule exists per namespace
	EntitlementSweepWorkflowID = "entitlement-sweep"

	WorkflowEntitlementSweep = "EntitlementSweepWorkflow"
	ActivitySweep            = "SweepActivity"

	DefaultSweepActivityTimeout = 30 * time.Minute
	DefaultMaximumAttempts      = 3
)

// SweepWorkflowInput identifies what started a sweep run
type SweepWorkflowInput struct {
	TriggeredBy string `json:"triggered_by"`
}

// SweepWorkflowResult carries the summary of the run
type SweepWorkflowResult struct {
	Summary *dto.SweepSummary `json:"summary"`
}
