// Package featuregate stores per-tenant feature entitlements in Redis. It is
// the optional external gate consulted ahead of the policy table.
package featuregate

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/quizroom/quizroom/internal/access"
)

const keyPrefix = "features:tenant:"

// Gate reads and writes tenant entitlement sets.
type Gate struct {
	client redis.UniversalClient
}

// New constructs a Gate.
func New(client redis.UniversalClient) *Gate {
	return &Gate{client: client}
}

func key(tenantID string) string {
	return keyPrefix + tenantID
}

// Features implements access.FeatureGate. A tenant without a set is unknown
// to the gate.
func (g *Gate) Features(ctx context.Context, actor access.Actor) ([]access.Feature, bool, error) {
	if actor.TenantID == "" {
		return nil, false, nil
	}
	members, err := g.client.SMembers(ctx, key(actor.TenantID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("featuregate: members: %w", err)
	}
	if len(members) == 0 {
		return nil, false, nil
	}
	out := make([]access.Feature, 0, len(members))
	for _, m := range members {
		out = append(out, access.Feature(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, true, nil
}

// Set replaces the tenant's entitlements. An empty list removes the tenant
// from the gate so the policy table applies again.
func (g *Gate) Set(ctx context.Context, tenantID string, features []access.Feature) error {
	pipe := g.client.TxPipeline()
	pipe.Del(ctx, key(tenantID))
	if len(features) > 0 {
		members := make([]any, len(features))
		for i, f := range features {
			members[i] = string(f)
		}
		pipe.SAdd(ctx, key(tenantID), members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("featuregate: set: %w", err)
	}
	return nil
}

// Grant adds features to the tenant's entitlements.
func (g *Gate) Grant(ctx context.Context, tenantID string, features ...access.Feature) error {
	if len(features) == 0 {
		return nil
	}
	members := make([]any, len(features))
	for i, f := range features {
		members[i] = string(f)
	}
	if err := g.client.SAdd(ctx, key(tenantID), members...).Err(); err != nil {
		return fmt.Errorf("featuregate: grant: %w", err)
	}
	return nil
}

// Revoke removes features from the tenant's entitlements.
func (g *Gate) Revoke(ctx context.Context, tenantID string, features ...access.Feature) error {
	if len(features) == 0 {
		return nil
	}
	members := make([]any, len(features))
	for i, f := range features {
		members[i] = string(f)
	}
	if err := g.client.SRem(ctx, key(tenantID), members...).Err(); err != nil {
		return fmt.Errorf("featuregate: revoke: %w", err)
	}
	return nil
}
