package service

import (
	"context"

	"github.com/flexprice/membership/internal/api/dto"
	"github.com/flexprice/membership/internal/cache"
	"github.com/flexprice/membership/internal/domain/billing"
	"github.com/flexprice/membership/internal/domain/entitlement"
	"github.com/flexprice/membership/internal/domain/user"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/types"
	"github.com/samber/lo"
)

// EntitlementService owns the account facing entitlement operations
type EntitlementService interface {
	// InitializeAccount creates the account user and its NONE record. Calling it again is a no-op.
	InitializeAccount(ctx context.Context, accountID string, req *dto.InitializeAccountRequest) (*dto.EntitlementResponse, error)
	GetEntitlement(ctx context.Context, accountID string) (*dto.EntitlementResponse, error)
	// ActivateSubscription completes a checkout for a provider subscription
	ActivateSubscription(ctx context.Context, accountID string, req *dto.ActivateSubscriptionRequest) (*dto.EntitlementResponse, error)
	// Cancel stops renewal. Access continues until the current end date.
	Cancel(ctx context.Context, accountID string) (*dto.EntitlementResponse, error)
	ListHistory(ctx context.Context, accountID string) (*dto.ListResponse[*entitlement.HistoryEntry], error)
	// RefreshSnapshot returns the entitlement snapshot to embed in a session
	RefreshSnapshot(ctx context.Context, accountID string) (*entitlement.Snapshot, error)
	GetRole(ctx context.Context, accountID string) (types.Role, error)
}

type entitlementService struct {
	ServiceParams
	transitions *transitioner
}

func NewEntitlementService(params ServiceParams) EntitlementService {
	return &entitlementService{
		ServiceParams: params,
		transitions:   newTransitioner(params),
	}
}

func (s *entitlementService) InitializeAccount(ctx context.Context, accountID string, req *dto.InitializeAccountRequest) (*dto.EntitlementResponse, error) {
	if req == nil {
		req = &dto.InitializeAccountRequest{}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var rec *entitlement.Record
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		now := s.now()
		if err := s.UserRepo.Create(ctx, user.NewUser(accountID, req.Email, now)); err != nil {
			return err
		}

		if _, err := s.EntitlementRepo.CompareAndSet(ctx, accountID, 0, entitlement.NewRecord(accountID, now)); err != nil {
			return err
		}

		var err error
		rec, err = s.EntitlementRepo.Get(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("account initialized", "account_id", accountID, "tier", rec.Tier)
	return dto.NewEntitlementResponse(rec, s.now(), s.policy()), nil
}

func (s *entitlementService) GetEntitlement(ctx context.Context, accountID string) (*dto.EntitlementResponse, error) {
	rec, err := s.EntitlementRepo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return dto.NewEntitlementResponse(rec, s.now(), s.policy()), nil
}

func (s *entitlementService) ActivateSubscription(ctx context.Context, accountID string, req *dto.ActivateSubscriptionRequest) (*dto.EntitlementResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.fetchSubscription(ctx, req.ExternalRef)
	if err != nil {
		return nil, err
	}

	if effectiveStatus(sub, s.now()) != types.ProviderSubscriptionStatusActive {
		return nil, ierr.NewError("subscription is not active").
			WithHint("The subscription is not active yet, complete the payment first").
			WithReportableDetails(map[string]any{
				"external_ref": req.ExternalRef,
				"status":       sub.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if err := s.checkSubscriptionOwner(ctx, accountID, req.ExternalRef, sub); err != nil {
		return nil, err
	}

	tier, ok := s.Config.Entitlement.TierForPrice(sub.PriceRef)
	if !ok || !tier.IsPaid() {
		return nil, ierr.NewError("subscription price is not mapped to a tier").
			WithHint("The purchased plan is not available").
			WithReportableDetails(map[string]any{
				"external_ref": req.ExternalRef,
				"price_ref":    sub.PriceRef,
			}).
			Mark(ierr.ErrValidation)
	}

	result, err := s.transitions.apply(ctx, accountID, func(current *entitlement.Record) (*change, error) {
		if current.CustomerRef != nil && sub.CustomerRef != "" && *current.CustomerRef != sub.CustomerRef {
			return nil, subscriptionNotOwned(accountID, req.ExternalRef).Mark(ierr.ErrPermissionDenied)
		}
		if lo.FromPtr(current.ExternalRef) == req.ExternalRef &&
			current.Status == types.EntitlementStatusActive &&
			current.Tier == tier &&
			current.EndDate != nil && current.EndDate.Equal(sub.PeriodEnd) {
			return nil, nil
		}

		next := current.Clone()
		next.Tier = tier
		next.Status = types.EntitlementStatusActive
		next.StartDate = sub.PeriodStart
		next.EndDate = lo.ToPtr(sub.PeriodEnd)
		next.ExternalRef = lo.ToPtr(req.ExternalRef)
		if sub.CustomerRef != "" {
			next.CustomerRef = lo.ToPtr(sub.CustomerRef)
		}
		next.LastReconciledAt = lo.ToPtr(s.now())

		metadata := types.Metadata{"external_ref": req.ExternalRef}
		if sub.PriceRef != "" {
			metadata["price_ref"] = sub.PriceRef
		}
		if sub.Currency != "" {
			metadata["currency"] = sub.Currency
		}

		return &change{
			record:   next,
			reason:   types.HistoryReasonSubscriptionActivated,
			kind:     entitlement.TransitionCheckout,
			amount:   sub.AmountPaid,
			metadata: metadata,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return dto.NewEntitlementResponse(result.Record, s.now(), s.policy()), nil
}

// checkSubscriptionOwner accepts a subscription only when the checkout was started for
// accountID and no other account is bound to it yet.
func (s *entitlementService) checkSubscriptionOwner(ctx context.Context, accountID, ref string, sub *billing.Subscription) error {
	if sub.AccountID != accountID {
		return subscriptionNotOwned(accountID, ref).Mark(ierr.ErrPermissionDenied)
	}

	bound, err := s.EntitlementRepo.GetByExternalRef(ctx, ref)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	}
	if bound.AccountID != accountID {
		s.Logger.Warnw("subscription already bound to another account",
			"account_id", accountID,
			"bound_account_id", bound.AccountID,
			"external_ref", ref,
		)
		return subscriptionNotOwned(accountID, ref).Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func subscriptionNotOwned(accountID, ref string) *ierr.ErrorBuilder {
	return ierr.NewError("subscription does not belong to account").
		WithHint("This subscription belongs to a different account").
		WithReportableDetails(map[string]any{"external_ref": ref}).
		WithAccount(accountID)
}

func (s *entitlementService) Cancel(ctx context.Context, accountID string) (*dto.EntitlementResponse, error) {
	rec, err := s.EntitlementRepo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if rec.Status == types.EntitlementStatusCancelled {
		return dto.NewEntitlementResponse(rec, s.now(), s.policy()), nil
	}
	if rec.Status != types.EntitlementStatusActive || !rec.Tier.IsEntitled() {
		return nil, ierr.NewError("entitlement is not active").
			WithHint("Only an active subscription can be cancelled").
			WithReportableDetails(map[string]any{
				"account_id": accountID,
				"tier":       rec.Tier,
				"status":     rec.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	// provider first, a failure there must leave the record untouched
	if rec.HasExternalRef() {
		if err := s.cancelAtPeriodEnd(ctx, *rec.ExternalRef); err != nil {
			return nil, err
		}
	}

	result, err := s.transitions.apply(ctx, accountID, func(current *entitlement.Record) (*change, error) {
		if current.Status == types.EntitlementStatusCancelled {
			return nil, nil
		}

		next := current.Clone()
		next.Status = types.EntitlementStatusCancelled
		return &change{
			record: next,
			reason: types.HistoryReasonCancelledByUser,
			kind:   entitlement.TransitionUser,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return dto.NewEntitlementResponse(result.Record, s.now(), s.policy()), nil
}

func (s *entitlementService) ListHistory(ctx context.Context, accountID string) (*dto.ListResponse[*entitlement.HistoryEntry], error) {
	entries, err := s.EntitlementRepo.ListHistory(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return dto.NewListResponse(entries), nil
}

func (s *entitlementService) RefreshSnapshot(ctx context.Context, accountID string) (*entitlement.Snapshot, error) {
	key := cache.SnapshotKey(accountID)
	if snapshot, ok := cache.Lookup[*entitlement.Snapshot](ctx, s.Cache, key); ok {
		return snapshot, nil
	}

	rec, err := s.EntitlementRepo.Get(ctx, accountID)
	if err != nil {
		if !ierr.IsNotFound(err) {
			return nil, err
		}
		rec = entitlement.NewRecord(accountID, s.now())
	}

	snapshot := rec.Snapshot()
	if s.Cache != nil {
		s.Cache.Set(ctx, key, snapshot, s.Config.Entitlement.SnapshotRefreshInterval)
	}
	return snapshot, nil
}

func (s *entitlementService) GetRole(ctx context.Context, accountID string) (types.Role, error) {
	key := cache.RoleKey(accountID)
	if role, ok := cache.Lookup[types.Role](ctx, s.Cache, key); ok {
		return role, nil
	}

	u, err := s.UserRepo.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}

	role := types.ParseRole(string(u.Role))
	if s.Cache != nil {
		s.Cache.Set(ctx, key, role, s.Config.Entitlement.SnapshotRefreshInterval)
	}
	return role, nil
}
