package service

import (
	"context"

	"github.com/flexprice/membership/internal/domain/entitlement"
	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/flexprice/membership/internal/metrics"
	"github.com/flexprice/membership/internal/types"
)

// Principal is the caller as known from its session
type Principal struct {
	Authenticated bool
	AccountID     string
	Role          types.Role
	// Snapshot is the entitlement carried by the session, nil or partial for old sessions
	Snapshot *entitlement.Snapshot
}

// Resource describes what a route requires
type Resource struct {
	Path                string
	RequiresAuth        bool
	AdminOnly           bool
	RequiresEntitlement bool
}

type DecisionKind string

const (
	DecisionAllow             DecisionKind = "allow"
	DecisionRedirectToLogin   DecisionKind = "redirect_to_login"
	DecisionRedirectToPricing DecisionKind = "redirect_to_pricing"
)

// ErrorMarkerAdminRequired is attached to login redirects caused by a non-admin hitting an admin resource
const ErrorMarkerAdminRequired = "admin_required"

type Decision struct {
	Kind        DecisionKind
	NextPath    string
	ErrorMarker string
	// AccessState is set when the decision was made by evaluating an entitlement
	AccessState types.AccessState
}

func (d Decision) Allowed() bool {
	return d.Kind == DecisionAllow
}

// Gate decides per request whether a principal may reach a resource. It never calls the
// billing provider and performs at most one store read, only when the session snapshot
// is incomplete.
type Gate interface {
	Decide(ctx context.Context, principal Principal, resource Resource) Decision
}

type gate struct {
	ServiceParams
}

func NewGate(params ServiceParams) Gate {
	return &gate{ServiceParams: params}
}

func (g *gate) Decide(ctx context.Context, principal Principal, resource Resource) Decision {
	decision, fallback := g.decide(ctx, principal, resource)
	metrics.RecordGateDecision(string(decision.Kind), fallback)
	return decision
}

func (g *gate) decide(ctx context.Context, principal Principal, resource Resource) (Decision, bool) {
	needsAuth := resource.RequiresAuth || resource.AdminOnly || resource.RequiresEntitlement
	if needsAuth && !principal.Authenticated {
		return Decision{Kind: DecisionRedirectToLogin, NextPath: resource.Path}, false
	}

	if resource.AdminOnly && !principal.Role.Has(types.PermissionAdminDashboard) {
		return Decision{
			Kind:        DecisionRedirectToLogin,
			NextPath:    resource.Path,
			ErrorMarker: ErrorMarkerAdminRequired,
		}, false
	}

	if principal.Role.IsAdmin() || !resource.RequiresEntitlement {
		return Decision{Kind: DecisionAllow}, false
	}

	rec, fallback, ok := g.resolveRecord(ctx, principal)
	if !ok {
		return Decision{Kind: DecisionRedirectToPricing}, fallback
	}

	state := entitlement.Evaluate(rec, g.now(), g.policy())
	if state.Granted() {
		return Decision{Kind: DecisionAllow, AccessState: state}, fallback
	}
	return Decision{Kind: DecisionRedirectToPricing, AccessState: state}, fallback
}

// resolveRecord prefers the session snapshot. A failed fallback read reports ok=false.
func (g *gate) resolveRecord(ctx context.Context, principal Principal) (*entitlement.Record, bool, bool) {
	if principal.Snapshot.IsComplete() {
		return principal.Snapshot.Record(principal.AccountID), false, true
	}

	rec, err := g.EntitlementRepo.Get(ctx, principal.AccountID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, true, true
		}
		g.Logger.Errorw("gate fallback read failed",
			"account_id", principal.AccountID,
			"error", err,
		)
		return nil, true, false
	}
	return rec, true, true
}
