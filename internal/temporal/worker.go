package temporal

import (
	"context"

	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/service"
	"go.temporal.io/sdk/worker"
	"go.uber.org/fx"
)

// Worker manages the Temporal worker instance
type Worker struct {
	worker  worker.Worker
	service *Service
	log     *logger.Logger
}

func NewWorker(client *TemporalClient, cfg *config.TemporalConfig, svc *Service, reconciler service.ReconcilerService, log *logger.Logger) *Worker {
	w := worker.New(client.Client, cfg.TaskQueue, worker.Options{})
	RegisterWorkflowsAndActivities(w, reconciler)

	return &Worker{
		worker:  w,
		service: svc,
		log:     log,
	}
}

// Start starts polling and makes sure the sweep schedule exists
func (w *Worker) Start(ctx context.Context) error {
	w.log.Infow("starting temporal worker")
	if err := w.worker.Start(); err != nil {
		return err
	}
	return w.service.StartSweepSchedule(ctx)
}

func (w *Worker) Stop() {
	w.log.Infow("stopping temporal worker")
	if w.worker != nil {
		w.worker.Stop()
	}
}

// RegisterWithLifecycle registers the worker with the fx lifecycle
func (w *Worker) RegisterWithLifecycle(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return w.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				w.Stop()
				close(done)
			}()

			select {
			case <-done:
				w.log.Infow("temporal worker stopped")
			case <-ctx.Done():
				w.log.Errorw("timeout while stopping temporal worker")
			}
			return nil
		},
	})
}
