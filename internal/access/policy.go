package access

import (
	"fmt"
	"strings"
)

// Tier is a subscription tier.
type Tier string

const (
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ParseTier normalises s into a known tier.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierBasic, TierPro, TierEnterprise:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

// Feature is a capability gated by subscription tier.
type Feature string

const (
	FeatureCreateQuizzes     Feature = "create_quizzes"
	FeatureManageClassrooms  Feature = "manage_classrooms"
	FeatureInviteStudents    Feature = "invite_students"
	FeatureViewAnalytics     Feature = "view_analytics"
	FeatureExportResults     Feature = "export_results"
	FeatureAdvancedAnalytics Feature = "advanced_analytics"
	FeatureCustomBranding    Feature = "custom_branding"
	FeatureAPIAccess         Feature = "api_access"
	FeatureSSO               Feature = "sso"
)

// Unlimited marks a quota without an upper bound.
const Unlimited = -1

// QuotaKind names a numeric quota.
type QuotaKind string

const (
	QuotaQuizzes    QuotaKind = "quizzes"
	QuotaClassrooms QuotaKind = "classrooms"
	QuotaStudents   QuotaKind = "students"
	QuotaFileSizeMB QuotaKind = "file_size_mb"
)

// Quotas are the numeric limits of a tier.
type Quotas struct {
	MaxQuizzes    int `json:"maxQuizzes"`
	MaxClassrooms int `json:"maxClassrooms"`
	MaxStudents   int `json:"maxStudents"`
	MaxFileSizeMB int `json:"maxFileSizeMb"`
}

// Limit returns the limit for kind.
func (q Quotas) Limit(kind QuotaKind) int {
	switch kind {
	case QuotaQuizzes:
		return q.MaxQuizzes
	case QuotaClassrooms:
		return q.MaxClassrooms
	case QuotaStudents:
		return q.MaxStudents
	case QuotaFileSizeMB:
		return q.MaxFileSizeMB
	}
	return 0
}

// Plan is one row of the policy table.
type Plan struct {
	Tier     Tier      `json:"tier"`
	Features []Feature `json:"features"`
	Quotas   Quotas    `json:"quotas"`
}

// QuotaExceededError reports a request that would go past a tier limit.
type QuotaExceededError struct {
	Resource QuotaKind
	Current  int
	Limit    int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("access: quota exceeded for %s (%d/%d)", e.Resource, e.Current, e.Limit)
}

// IsQuotaExceeded reports whether err is a QuotaExceededError.
func IsQuotaExceeded(err error) bool {
	_, ok := err.(*QuotaExceededError)
	return ok
}

// Policy is the authoritative tier → features/quotas table. The navigation
// gate and the plan endpoint both read from it.
type Policy struct {
	plans    map[Tier]Plan
	features map[Tier]map[Feature]struct{}
}

// NewPolicy builds a policy from plans.
func NewPolicy(plans ...Plan) *Policy {
	p := &Policy{
		plans:    make(map[Tier]Plan, len(plans)),
		features: make(map[Tier]map[Feature]struct{}, len(plans)),
	}
	for _, plan := range plans {
		p.plans[plan.Tier] = plan
		set := make(map[Feature]struct{}, len(plan.Features))
		for _, f := range plan.Features {
			set[f] = struct{}{}
		}
		p.features[plan.Tier] = set
	}
	return p
}

// DefaultPolicy returns the shipped table where each tier contains every
// feature of the tier below it.
func DefaultPolicy() *Policy {
	basic := []Feature{FeatureCreateQuizzes, FeatureManageClassrooms}
	pro := append(append([]Feature{}, basic...), FeatureInviteStudents, FeatureViewAnalytics, FeatureExportResults)
	enterprise := append(append([]Feature{}, pro...), FeatureAdvancedAnalytics, FeatureCustomBranding, FeatureAPIAccess, FeatureSSO)
	return NewPolicy(
		Plan{Tier: TierBasic, Features: basic, Quotas: Quotas{MaxQuizzes: 10, MaxClassrooms: 1, MaxStudents: 30, MaxFileSizeMB: 5}},
		Plan{Tier: TierPro, Features: pro, Quotas: Quotas{MaxQuizzes: 100, MaxClassrooms: 10, MaxStudents: 500, MaxFileSizeMB: 50}},
		Plan{Tier: TierEnterprise, Features: enterprise, Quotas: Quotas{MaxQuizzes: Unlimited, MaxClassrooms: Unlimited, MaxStudents: Unlimited, MaxFileSizeMB: 500}},
	)
}

// Plan returns the row for tier. Unknown tiers get the basic row.
func (p *Policy) Plan(tier Tier) Plan {
	if plan, ok := p.plans[tier]; ok {
		return plan
	}
	return p.plans[TierBasic]
}

// Features returns the features granted to tier.
func (p *Policy) Features(tier Tier) []Feature {
	plan := p.Plan(tier)
	out := make([]Feature, len(plan.Features))
	copy(out, plan.Features)
	return out
}

// Quotas returns the quotas of tier.
func (p *Policy) Quotas(tier Tier) Quotas {
	return p.Plan(tier).Quotas
}

// Grants reports whether tier carries every one of features.
func (p *Policy) Grants(tier Tier, features ...Feature) bool {
	set, ok := p.features[tier]
	if !ok {
		set = p.features[TierBasic]
	}
	for _, f := range features {
		if _, ok := set[f]; !ok {
			return false
		}
	}
	return true
}

// CheckQuota returns a *QuotaExceededError when current+adding would exceed
// the tier's limit for kind.
func (p *Policy) CheckQuota(tier Tier, kind QuotaKind, current, adding int) error {
	limit := p.Quotas(tier).Limit(kind)
	if limit == Unlimited {
		return nil
	}
	if current+adding > limit {
		return &QuotaExceededError{Resource: kind, Current: current + adding, Limit: limit}
	}
	return nil
}
