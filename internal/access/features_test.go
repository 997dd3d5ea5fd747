package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGate struct {
	features []Feature
	known    bool
	err      error
}

func (g stubGate) Features(context.Context, Actor) ([]Feature, bool, error) {
	return g.features, g.known, g.err
}

func TestGatedFeaturesPrefersKnownGate(t *testing.T) {
	checker := GatedFeatures{Gate: stubGate{features: []Feature{FeatureSSO}, known: true}}
	ok, err := checker.HasFeatures(context.Background(), Actor{Tier: TierBasic}, FeatureSSO)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.HasFeatures(context.Background(), Actor{Tier: TierEnterprise}, FeatureCreateQuizzes)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGatedFeaturesFallsBackToPolicy(t *testing.T) {
	for name, gate := range map[string]FeatureGate{
		"no gate":      nil,
		"unknown":      stubGate{},
		"gate failing": stubGate{err: errors.New("redis down"), known: true},
	} {
		t.Run(name, func(t *testing.T) {
			checker := GatedFeatures{Gate: gate, Policy: DefaultPolicy()}
			ok, err := checker.HasFeatures(context.Background(), Actor{Tier: TierPro}, FeatureViewAnalytics)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = checker.HasFeatures(context.Background(), Actor{Tier: TierPro}, FeatureSSO)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}
