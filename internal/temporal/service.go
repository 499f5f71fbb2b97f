package temporal

import (
	"context"
	"errors"

	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/temporal/models"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// Service starts the entitlement workflows
type Service struct {
	client client.Client
	log    *logger.Logger
	cfg    *config.TemporalConfig
}

func NewService(client *TemporalClient, cfg *config.TemporalConfig, log *logger.Logger) *Service {
	return &Service{
		client: client.Client,
		log:    log,
		cfg:    cfg,
	}
}

// StartSweepSchedule registers the cron sweep workflow. A schedule that is already running
// is left alone, so every worker may call this on startup.
func (s *Service) StartSweepSchedule(ctx context.Context) error {
	if s.cfg.SweepCron == "" {
		s.log.Infow("entitlement sweep schedule disabled")
		return nil
	}

	options := client.StartWorkflowOptions{
		ID:                                       models.EntitlementSweepWorkflowID,
		TaskQueue:                                s.cfg.TaskQueue,
		CronSchedule:                             s.cfg.SweepCron,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}

	run, err := s.client.ExecuteWorkflow(ctx, options, models.WorkflowEntitlementSweep, models.SweepWorkflowInput{
		TriggeredBy: "schedule",
	})
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			s.log.Infow("entitlement sweep schedule already running",
				"workflow_id", models.EntitlementSweepWorkflowID,
			)
			return nil
		}
		s.log.Errorw("failed to start entitlement sweep schedule", "error", err)
		return err
	}

	s.log.Infow("entitlement sweep schedule started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"cron", s.cfg.SweepCron,
	)
	return nil
}
