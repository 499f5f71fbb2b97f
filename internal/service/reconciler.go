package service

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/membership/internal/api/dto"
	"github.com/flexprice/membership/internal/domain/billing"
	"github.com/flexprice/membership/internal/domain/entitlement"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/metrics"
	"github.com/flexprice/membership/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"
)

// ReconcilerService keeps local entitlement records in line with the billing provider
type ReconcilerService interface {
	// Sweep reconciles every record near or past its end date. Per-record failures are
	// counted in the summary; only a failed selection fails the sweep.
	Sweep(ctx context.Context) (*dto.SweepSummary, error)

	// CheckRenewal reconciles a single account on demand, retrying an outstanding
	// invoice when the provider reports the subscription past due.
	CheckRenewal(ctx context.Context, accountID string) (*dto.RenewalCheckResponse, error)
}

type reconcileOutcome string

const (
	outcomeRenewed   reconcileOutcome = "renewed"
	outcomeExpired   reconcileOutcome = "expired"
	outcomeUnchanged reconcileOutcome = "unchanged"
	outcomeSkipped   reconcileOutcome = "skipped"
	outcomeErrored   reconcileOutcome = "errored"
	outcomeAnomaly   reconcileOutcome = "anomaly"
)

type reconcilerService struct {
	ServiceParams
	transitions *transitioner
	limiter     *rate.Limiter
}

func NewReconcilerService(params ServiceParams) ReconcilerService {
	limit := rate.Inf
	if rps := params.Config.Entitlement.SweepRatePerSecond; rps > 0 {
		limit = rate.Limit(rps)
	}
	return &reconcilerService{
		ServiceParams: params,
		transitions:   newTransitioner(params),
		limiter:       rate.NewLimiter(limit, 1),
	}
}

func (s *reconcilerService) Sweep(ctx context.Context) (*dto.SweepSummary, error) {
	span, ctx := s.Sentry.StartTransaction(ctx, "entitlement.sweep")
	if span != nil {
		defer span.Finish()
	}

	started := s.now()
	policy := s.policy()
	runID := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SWEEP)

	billed, err := s.EntitlementRepo.ListNearExpiry(ctx, started.Add(policy.LookaheadWindow))
	if err != nil {
		return nil, err
	}
	lapsed, err := s.EntitlementRepo.ListLapsedUnbilled(ctx, started.Add(-policy.GracePeriod))
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("starting entitlement sweep",
		"run_id", runID,
		"billed_records", len(billed),
		"lapsed_records", len(lapsed),
	)

	concurrency := s.Config.Entitlement.SweepConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	p := pool.NewWithResults[reconcileOutcome]().WithMaxGoroutines(concurrency)
	for _, rec := range billed {
		rec := rec
		p.Go(func() reconcileOutcome {
			return s.isolate(rec.AccountID, func() reconcileOutcome {
				return s.sweepBilled(ctx, rec)
			})
		})
	}
	for _, rec := range lapsed {
		rec := rec
		p.Go(func() reconcileOutcome {
			return s.isolate(rec.AccountID, func() reconcileOutcome {
				return s.sweepLapsed(ctx, rec.AccountID)
			})
		})
	}
	outcomes := p.Wait()

	summary := summarize(outcomes)
	summary.RunID = runID
	summary.StartedAt = started
	summary.FinishedAt = s.now()

	metrics.AddSweepRecords(metrics.SweepOutcomeProcessed, summary.Processed)
	metrics.AddSweepRecords(metrics.SweepOutcomeRenewed, summary.Renewed)
	metrics.AddSweepRecords(metrics.SweepOutcomeExpired, summary.Expired)
	metrics.AddSweepRecords(metrics.SweepOutcomeUnchanged, summary.Unchanged)
	metrics.AddSweepRecords(metrics.SweepOutcomeSkipped, summary.Skipped)
	metrics.AddSweepRecords(metrics.SweepOutcomeErrored, summary.Errored)
	metrics.AddSweepRecords(metrics.SweepOutcomeAnomaly, summary.Anomalies)
	metrics.ObserveSweep(summary.FinishedAt.Sub(started))

	s.Logger.Infow("entitlement sweep finished",
		"run_id", runID,
		"processed", summary.Processed,
		"renewed", summary.Renewed,
		"expired", summary.Expired,
		"unchanged", summary.Unchanged,
		"skipped", summary.Skipped,
		"errored", summary.Errored,
		"anomalies", summary.Anomalies,
	)
	return summary, nil
}

func summarize(outcomes []reconcileOutcome) *dto.SweepSummary {
	summary := &dto.SweepSummary{Processed: len(outcomes)}
	for _, o := range outcomes {
		switch o {
		case outcomeRenewed:
			summary.Renewed++
		case outcomeExpired:
			summary.Expired++
		case outcomeUnchanged:
			summary.Unchanged++
		case outcomeSkipped:
			summary.Skipped++
		case outcomeAnomaly:
			summary.Errored++
			summary.Anomalies++
		default:
			summary.Errored++
		}
	}
	return summary
}

// isolate keeps a panic in one account from taking down the whole sweep
func (s *reconcilerService) isolate(accountID string, fn func() reconcileOutcome) (outcome reconcileOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Errorw("panic while reconciling entitlement",
				"account_id", accountID,
				"panic", r,
			)
			s.Sentry.CaptureException(fmt.Errorf("panic while reconciling %s: %v", accountID, r))
			outcome = outcomeErrored
		}
	}()
	return fn()
}

func (s *reconcilerService) sweepBilled(ctx context.Context, rec *entitlement.Record) reconcileOutcome {
	now := s.now()
	if minInterval := s.Config.Entitlement.MinReconcileInterval; minInterval > 0 &&
		rec.LastReconciledAt != nil && now.Sub(*rec.LastReconciledAt) < minInterval {
		return outcomeSkipped
	}

	if err := s.limiter.Wait(ctx); err != nil {
		s.Logger.Warnw("sweep stopped waiting for provider rate limit",
			"account_id", rec.AccountID,
			"error", err,
		)
		return outcomeErrored
	}

	ref := lo.FromPtr(rec.ExternalRef)
	sub, err := s.fetchSubscription(ctx, ref)
	if err != nil {
		return s.providerFailure(rec.AccountID, ref, err)
	}

	outcome, _, err := s.applySubscription(ctx, rec.AccountID, ref, sub)
	if err != nil {
		s.Logger.Errorw("failed to reconcile entitlement",
			"account_id", rec.AccountID,
			"external_ref", ref,
			"error", err,
		)
		return outcomeErrored
	}
	return outcome
}

func (s *reconcilerService) sweepLapsed(ctx context.Context, accountID string) reconcileOutcome {
	outcome, _, err := s.expireLocal(ctx, accountID)
	if err != nil {
		s.Logger.Errorw("failed to expire lapsed entitlement",
			"account_id", accountID,
			"error", err,
		)
		return outcomeErrored
	}
	return outcome
}

// providerFailure classifies a failed provider read. Missing subscriptions are anomalies:
// the record is left alone and someone has to look at it.
func (s *reconcilerService) providerFailure(accountID, ref string, err error) reconcileOutcome {
	if ierr.IsNotFound(err) {
		s.Logger.Warnw("provider subscription not found for entitlement",
			"account_id", accountID,
			"external_ref", ref,
		)
		s.Sentry.CaptureAnomaly("provider subscription not found", map[string]interface{}{
			"account_id":   accountID,
			"external_ref": ref,
		})
		return outcomeAnomaly
	}

	s.Logger.Errorw("failed to fetch provider subscription",
		"account_id", accountID,
		"external_ref", ref,
		"error", err,
	)
	return outcomeErrored
}

// effectiveStatus treats an "active" subscription whose own period already ended as past due
func effectiveStatus(sub *billing.Subscription, now time.Time) types.ProviderSubscriptionStatus {
	if sub.Status == types.ProviderSubscriptionStatusActive && sub.PeriodLapsed(now) {
		return types.ProviderSubscriptionStatusPastDue
	}
	return sub.Status
}

// applySubscription folds the provider's view of ref into the record. The record is
// re-read inside the transaction, so a record that moved on since selection is left alone.
func (s *reconcilerService) applySubscription(ctx context.Context, accountID, ref string, sub *billing.Subscription) (reconcileOutcome, *transitionResult, error) {
	policy := s.policy()
	outcome := outcomeUnchanged

	result, err := s.transitions.apply(ctx, accountID, func(current *entitlement.Record) (*change, error) {
		now := s.now()
		outcome = outcomeUnchanged

		if lo.FromPtr(current.ExternalRef) != ref {
			return nil, nil
		}
		if current.Status != types.EntitlementStatusActive && current.Status != types.EntitlementStatusCancelled {
			return nil, nil
		}

		next := current.Clone()
		next.LastReconciledAt = lo.ToPtr(now)
		metadata := types.Metadata{
			"external_ref":    ref,
			"provider_status": string(sub.Status),
		}

		switch effectiveStatus(sub, now) {
		case types.ProviderSubscriptionStatusActive:
			tier := current.Tier
			if mapped, ok := s.Config.Entitlement.TierForPrice(sub.PriceRef); ok {
				tier = mapped
			}
			if tier == current.Tier && current.StartDate.Equal(sub.PeriodStart) &&
				current.EndDate != nil && current.EndDate.Equal(sub.PeriodEnd) {
				return &change{record: next}, nil
			}

			next.Tier = tier
			next.StartDate = sub.PeriodStart
			next.EndDate = lo.ToPtr(sub.PeriodEnd)
			if sub.CustomerRef != "" {
				next.CustomerRef = lo.ToPtr(sub.CustomerRef)
			}
			if sub.PriceRef != "" {
				metadata["price_ref"] = sub.PriceRef
			}
			outcome = outcomeRenewed
			return &change{
				record:   next,
				reason:   types.HistoryReasonRenewalConfirmed,
				kind:     entitlement.TransitionAutomatic,
				amount:   sub.AmountPaid,
				metadata: metadata,
			}, nil

		case types.ProviderSubscriptionStatusPastDue:
			if current.EndDate != nil && !now.After(s.graceDeadline(current, policy)) {
				return &change{record: next}, nil
			}
			next.Status = types.EntitlementStatusExpired
			outcome = outcomeExpired
			return &change{
				record:   next,
				reason:   types.HistoryReasonGracePeriodExpired,
				kind:     entitlement.TransitionAutomatic,
				metadata: metadata,
			}, nil

		case types.ProviderSubscriptionStatusCanceled, types.ProviderSubscriptionStatusUnpaid:
			reason := types.HistoryReasonProviderCanceled
			if sub.Status == types.ProviderSubscriptionStatusUnpaid {
				reason = types.HistoryReasonProviderUnpaid
			}
			next.Status = types.EntitlementStatusExpired
			outcome = outcomeExpired
			return &change{
				record:   next,
				reason:   reason,
				kind:     entitlement.TransitionAutomatic,
				metadata: metadata,
			}, nil
		}

		return nil, ierr.NewError("unsupported provider subscription status").
			WithHint("The billing provider returned an unsupported subscription status").
			WithReportableDetails(map[string]any{
				"account_id":   accountID,
				"external_ref": ref,
				"status":       sub.Status,
			}).
			Mark(ierr.ErrValidation)
	})
	if err != nil {
		return outcomeErrored, nil, err
	}
	return outcome, result, nil
}

// graceDeadline is the end of access for a lapsed record: end+grace while ACTIVE, end once CANCELLED
func (s *reconcilerService) graceDeadline(rec *entitlement.Record, policy entitlement.Policy) time.Time {
	if rec.Status == types.EntitlementStatusCancelled {
		return *rec.EndDate
	}
	return policy.GraceDeadline(*rec.EndDate)
}

// expireLocal moves a record that has no provider subscription to EXPIRED once the
// evaluator no longer grants access
func (s *reconcilerService) expireLocal(ctx context.Context, accountID string) (reconcileOutcome, *transitionResult, error) {
	policy := s.policy()
	outcome := outcomeUnchanged

	result, err := s.transitions.apply(ctx, accountID, func(current *entitlement.Record) (*change, error) {
		now := s.now()
		outcome = outcomeUnchanged

		if current.HasExternalRef() {
			return nil, nil
		}
		if current.Status != types.EntitlementStatusActive && current.Status != types.EntitlementStatusCancelled {
			return nil, nil
		}
		if entitlement.Evaluate(current, now, policy).Granted() {
			return nil, nil
		}

		reason := types.HistoryReasonGracePeriodExpired
		if current.Tier == types.TierFreeTrial {
			reason = types.HistoryReasonTrialEnded
		}

		next := current.Clone()
		next.Status = types.EntitlementStatusExpired
		next.LastReconciledAt = lo.ToPtr(now)
		outcome = outcomeExpired
		return &change{
			record: next,
			reason: reason,
			kind:   entitlement.TransitionAutomatic,
		}, nil
	})
	if err != nil {
		return outcomeErrored, nil, err
	}
	return outcome, result, nil
}

func (s *reconcilerService) CheckRenewal(ctx context.Context, accountID string) (*dto.RenewalCheckResponse, error) {
	rec, err := s.EntitlementRepo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if rec.Tier == types.TierNone || rec.Status == types.EntitlementStatusExpired {
		return s.renewalResponse(types.RenewalOutcomeExpired, rec), nil
	}

	if !rec.HasExternalRef() {
		if entitlement.Evaluate(rec, s.now(), s.policy()).Granted() {
			return s.renewalResponse(types.RenewalOutcomeStillValid, rec), nil
		}
		_, result, err := s.expireLocal(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return s.renewalResponse(types.RenewalOutcomeExpired, result.Record), nil
	}

	ref := lo.FromPtr(rec.ExternalRef)
	sub, err := s.fetchSubscription(ctx, ref)
	if err != nil {
		if s.providerFailure(accountID, ref, err) == outcomeAnomaly {
			return s.localRenewalResponse(rec), nil
		}
		return nil, err
	}

	if effectiveStatus(sub, s.now()) == types.ProviderSubscriptionStatusPastDue {
		paid := false
		if sub.LatestInvoiceRef != "" {
			paid, err = s.payInvoice(ctx, sub.LatestInvoiceRef)
			if err != nil {
				return nil, err
			}
		}

		if !paid {
			s.Logger.Infow("outstanding invoice payment failed",
				"account_id", accountID,
				"external_ref", ref,
				"invoice_ref", sub.LatestInvoiceRef,
			)
			if rec.EndDate == nil || !s.now().After(s.graceDeadline(rec, s.policy())) {
				return s.renewalResponse(types.RenewalOutcomePaymentFailed, rec), nil
			}
			// past the deadline a failed payment ends the entitlement like a sweep would
		} else {
			sub, err = s.fetchSubscription(ctx, ref)
			if err != nil {
				if s.providerFailure(accountID, ref, err) == outcomeAnomaly {
					return s.localRenewalResponse(rec), nil
				}
				return nil, err
			}
		}
	}

	outcome, result, err := s.applySubscription(ctx, accountID, ref, sub)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case outcomeRenewed:
		return s.renewalResponse(types.RenewalOutcomeRenewed, result.Record), nil
	case outcomeExpired:
		return s.renewalResponse(types.RenewalOutcomeExpired, result.Record), nil
	}
	if entitlement.Evaluate(result.Record, s.now(), s.policy()).Granted() {
		return s.renewalResponse(types.RenewalOutcomeStillValid, result.Record), nil
	}
	return s.renewalResponse(types.RenewalOutcomeExpired, result.Record), nil
}

// localRenewalResponse classifies rec without writing it, for when the provider has no subscription
func (s *reconcilerService) localRenewalResponse(rec *entitlement.Record) *dto.RenewalCheckResponse {
	if entitlement.Evaluate(rec, s.now(), s.policy()).Granted() {
		return s.renewalResponse(types.RenewalOutcomeStillValid, rec)
	}
	return s.renewalResponse(types.RenewalOutcomeExpired, rec)
}

func (s *reconcilerService) renewalResponse(outcome types.RenewalOutcome, rec *entitlement.Record) *dto.RenewalCheckResponse {
	resp := &dto.RenewalCheckResponse{
		Outcome:     outcome,
		Entitlement: dto.NewEntitlementResponse(rec, s.now(), s.policy()),
	}
	if outcome == types.RenewalOutcomeStillValid || outcome == types.RenewalOutcomeRenewed {
		resp.DaysRemaining = resp.Entitlement.DaysRemaining
	}
	return resp
}
