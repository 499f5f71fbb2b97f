package service

import (
	"context"

	"github.com/flexprice/membership/internal/api/dto"
	"github.com/flexprice/membership/internal/domain/entitlement"
	"github.com/flexprice/membership/internal/types"
	"github.com/samber/lo"
)

// TrialService starts the one free trial every account is allowed
type TrialService interface {
	// ActivateTrial grants FREE_TRIAL for the configured trial duration. Repeated calls
	// return already_used and leave the record and history untouched.
	ActivateTrial(ctx context.Context, accountID string, req *dto.ActivateTrialRequest) (*dto.TrialResponse, error)
}

type trialService struct {
	ServiceParams
	transitions *transitioner
}

func NewTrialService(params ServiceParams) TrialService {
	return &trialService{
		ServiceParams: params,
		transitions:   newTransitioner(params),
	}
}

func (s *trialService) ActivateTrial(ctx context.Context, accountID string, req *dto.ActivateTrialRequest) (*dto.TrialResponse, error) {
	if req == nil {
		req = &dto.ActivateTrialRequest{}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	policy := s.policy()
	var outcome types.TrialOutcome

	result, err := s.transitions.apply(ctx, accountID, func(current *entitlement.Record) (*change, error) {
		now := s.now()

		if current.FreeTrialUsed {
			outcome = types.TrialOutcomeAlreadyUsed
			return nil, nil
		}
		if current.Tier.IsPaid() && entitlement.Evaluate(current, now, policy).Granted() {
			outcome = types.TrialOutcomeAlreadySubscribed
			return nil, nil
		}

		next := current.Clone()
		next.Tier = types.TierFreeTrial
		next.Status = types.EntitlementStatusActive
		next.StartDate = now
		next.EndDate = lo.ToPtr(now.Add(policy.TrialDuration))
		next.FreeTrialUsed = true
		// a trial is local only, the reconciler must not pick it up through a stale subscription
		next.ExternalRef = nil

		metadata := types.Metadata{}
		if req.ReferralCode != "" {
			metadata["referral_code"] = req.ReferralCode
		}

		outcome = types.TrialOutcomeActivated
		return &change{
			record:   next,
			reason:   types.HistoryReasonTrialActivated,
			kind:     entitlement.TransitionAutomatic,
			metadata: metadata,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if outcome != types.TrialOutcomeActivated {
		s.Logger.Infow("trial not activated",
			"account_id", accountID,
			"outcome", outcome,
		)
	}

	return &dto.TrialResponse{
		Outcome:     outcome,
		Entitlement: dto.NewEntitlementResponse(result.Record, s.now(), policy),
	}, nil
}
