package access

import (
	"context"
	"log/slog"
)

// FeatureChecker decides whether an actor holds a set of features.
type FeatureChecker interface {
	HasFeatures(ctx context.Context, actor Actor, features ...Feature) (bool, error)
}

// FeatureGate is an optional external entitlement source. known is false
// when the gate has no record for the actor's tenant.
type FeatureGate interface {
	Features(ctx context.Context, actor Actor) (features []Feature, known bool, err error)
}

// GatedFeatures prefers the external gate when it knows the tenant and falls
// back to the policy table otherwise.
type GatedFeatures struct {
	Gate   FeatureGate
	Policy *Policy
	Logger *slog.Logger
}

// HasFeatures implements FeatureChecker.
func (g GatedFeatures) HasFeatures(ctx context.Context, actor Actor, features ...Feature) (bool, error) {
	if len(features) == 0 {
		return true, nil
	}
	if g.Gate != nil {
		granted, known, err := g.Gate.Features(ctx, actor)
		switch {
		case err != nil:
			if g.Logger != nil {
				g.Logger.Warn("feature gate unavailable, using policy table", slog.String("tenant_id", actor.TenantID), slog.Any("error", err))
			}
		case known:
			return containsAll(granted, features), nil
		}
	}
	policy := g.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}
	return policy.Grants(actor.Tier, features...), nil
}

func containsAll(granted, required []Feature) bool {
	set := make(map[Feature]struct{}, len(granted))
	for _, f := range granted {
		set[f] = struct{}{}
	}
	for _, f := range required {
		if _, ok := set[f]; !ok {
			return false
		}
	}
	return true
}
