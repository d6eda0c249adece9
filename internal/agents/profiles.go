package agents

import (
	"prodigy/internal/domain/counsel"
	"prodigy/pkg/schemas"
)

// Identity labels of the non-specialist agents.
const (
	IdentityChiefOfStaff   = "Chief of Staff (Prodigy Counsel)"
	IdentityDevilsAdvocate = "Devil's Advocate"
	IdentityQueryBroker    = "Query Broker"
	IdentityResearcher     = "Market Researcher"
)

// Profile is the constructor-level configuration of one specialist.
type Profile struct {
	Key         counsel.SpecialistKey
	Identity    string
	Temperature float64

	// SystemTemplate is the template id of the role instructions.
	SystemTemplate string
	Schema         string

	// Decisions holds the labels for the >=8, >=6, >=4 and lower score tiers.
	Decisions [4]string

	// Extras projects specialist-specific fields out of a result for the summary.
	Extras func(r *counsel.SpecialistResult) map[string]any
}

// Decision maps a score onto this profile's decision label.
func (p Profile) Decision(score float64) string {
	return tierLabel(score, p.Decisions)
}

var profiles = map[counsel.SpecialistKey]Profile{
	counsel.SpecialistMarket: {
		Key:            counsel.SpecialistMarket,
		Identity:       "VP of Market & Strategy",
		Temperature:    0.7,
		SystemTemplate: "agents/market",
		Schema:         schemas.Specialist,
		Decisions: [4]string{
			"Strong bootstrap opportunity - Clear path to profitability",
			"Viable with hustle - Bootstrappable but requires execution",
			"Challenging - Requires pivots or additional resources",
			"Not bootstrappable - Consider alternative approaches",
		},
	},
	counsel.SpecialistTech: {
		Key:            counsel.SpecialistTech,
		Identity:       "VP of Engineering",
		Temperature:    0.3,
		SystemTemplate: "agents/tech",
		Schema:         schemas.Specialist,
		Decisions: [4]string{
			"Ship this fast - MVP achievable in timeline",
			"Shippable with focus - Ruthless scope cuts needed",
			"Challenging but possible - Significant scope reduction required",
			"Difficult to ship quickly - Consider simpler MVP or longer timeline",
		},
		Extras: techExtras,
	},
	counsel.SpecialistRevenue: {
		Key:            counsel.SpecialistRevenue,
		Identity:       "VP of Revenue & Growth",
		Temperature:    0.7,
		SystemTemplate: "agents/revenue",
		Schema:         schemas.Specialist,
		Decisions: [4]string{
			"Strong bootstrap revenue model - Clear path to profitability",
			"Solid monetization potential - Requires validation and execution",
			"Challenging revenue model - Significant validation needed",
			"Weak monetization path - Rethink pricing or business model",
		},
		Extras: revenueExtras,
	},
	counsel.SpecialistOps: {
		Key:            counsel.SpecialistOps,
		Identity:       "VP of Operations & Delivery",
		Temperature:    0.3,
		SystemTemplate: "agents/ops",
		Schema:         schemas.Specialist,
		Decisions: [4]string{
			"Operationally simple - Solo founder can sustain long-term",
			"Manageable operations - Some burden but sustainable",
			"Challenging operations - May need help or significant automation",
			"Operationally complex - Difficult to run solo",
		},
		Extras: opsExtras,
	},
	counsel.SpecialistProduct: {
		Key:            counsel.SpecialistProduct,
		Identity:       "VP of Product & UX",
		Temperature:    0.5,
		SystemTemplate: "agents/product",
		Schema:         schemas.Specialist,
		Decisions: [4]string{
			"Strong product-market fit potential - Users will love this",
			"Good validation readiness - Solid UX foundation",
			"Needs UX improvements - Functional but risky",
			"UX concerns - May struggle with adoption",
		},
		Extras: productExtras,
	},
}

// ProfileFor returns the built-in profile of a specialist.
func ProfileFor(key counsel.SpecialistKey) (Profile, bool) {
	p, ok := profiles[key]
	return p, ok
}

// Profiles returns the built-in profiles in stage order.
func Profiles() []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, key := range counsel.AllSpecialists() {
		out = append(out, profiles[key])
	}
	return out
}

// nested returns the object at path inside details, or an empty payload
func nested(details map[string]any, path ...string) counsel.Payload {
	v, _ := counsel.Lookup(details, path...)
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return counsel.Payload{}
}

func techExtras(r *counsel.SpecialistResult) map[string]any {
	arch := nested(r.Details, "architecture")
	return map[string]any{
		"suggested_architecture": map[string]any{
			"high_level_components": arch.Strings("high_level_components"),
			"models_and_services":   arch.Strings("models_and_services"),
		},
	}
}

func revenueExtras(r *counsel.SpecialistResult) map[string]any {
	pricing := nested(r.Details, "pricing_strategy")
	growth := nested(r.Details, "growth_channels")
	return map[string]any{
		"monetization_summary": nested(r.Details, "business_model").String("description"),
		"suggested_pricing": map[string]any{
			"model":        pricing.String("suggested_model"),
			"price_points": pricing.Strings("price_points"),
		},
		"key_growth_channels": map[string]any{
			"primary":   growth.Strings("primary_channels"),
			"secondary": growth.Strings("secondary_channels"),
		},
	}
}

func opsExtras(r *counsel.SpecialistResult) map[string]any {
	hours, _ := nested(r.Details, "scalability_and_maintenance").Float("post_launch_support_hours_per_week")
	return map[string]any{
		"weekly_maintenance_hours": hours,
	}
}

func productExtras(r *counsel.SpecialistResult) map[string]any {
	pmf := nested(r.Details, "pmf_readiness")
	usability, _ := pmf.Float("usability_score")
	delight, _ := pmf.Float("delight_score")

	risks := append(append([]string(nil), pmf.Strings("ux_risks")...), r.Risks...)
	if len(risks) > 3 {
		risks = risks[:3]
	}
	return map[string]any{
		"usability_score": usability,
		"delight_score":   delight,
		"top_ux_risks":    risks,
	}
}
