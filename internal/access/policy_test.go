package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTiersAreNested(t *testing.T) {
	p := DefaultPolicy()
	for _, pair := range [][2]Tier{{TierBasic, TierPro}, {TierPro, TierEnterprise}} {
		lower, upper := pair[0], pair[1]
		assert.True(t, p.Grants(upper, p.Features(lower)...), "%s should contain %s", upper, lower)
		assert.Greater(t, len(p.Features(upper)), len(p.Features(lower)))
	}
}

func TestUnknownTierGetsBasic(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, p.Plan(TierBasic), p.Plan(Tier("platinum")))
	assert.False(t, p.Grants(Tier("platinum"), FeatureSSO))
	assert.True(t, p.Grants(Tier(""), FeatureCreateQuizzes))

	_, err := ParseTier("platinum")
	assert.ErrorIs(t, err, ErrUnknownTier)
	tier, err := ParseTier(" PRO ")
	require.NoError(t, err)
	assert.Equal(t, TierPro, tier)
}

func TestCheckQuota(t *testing.T) {
	p := DefaultPolicy()

	require.NoError(t, p.CheckQuota(TierBasic, QuotaQuizzes, 9, 1))

	err := p.CheckQuota(TierBasic, QuotaQuizzes, 10, 1)
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))
	qerr := err.(*QuotaExceededError)
	assert.Equal(t, QuotaQuizzes, qerr.Resource)
	assert.Equal(t, 10, qerr.Limit)

	assert.NoError(t, p.CheckQuota(TierEnterprise, QuotaStudents, 1_000_000, 1))
	assert.Error(t, p.CheckQuota(TierEnterprise, QuotaFileSizeMB, 500, 1))
}

func TestFeaturesReturnsCopy(t *testing.T) {
	p := DefaultPolicy()
	f := p.Features(TierBasic)
	f[0] = FeatureSSO
	assert.False(t, p.Grants(TierBasic, FeatureSSO))
}
