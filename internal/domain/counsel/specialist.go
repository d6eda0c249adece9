package counsel

import "strings"

// SpecialistKey is the canonical identifier of one evaluation dimension
type SpecialistKey string

const (
	SpecialistMarket  SpecialistKey = "market"
	SpecialistTech    SpecialistKey = "tech"
	SpecialistRevenue SpecialistKey = "revenue"
	SpecialistOps     SpecialistKey = "ops"
	SpecialistProduct SpecialistKey = "product"
)

// String returns the string representation of the key
func (k SpecialistKey) String() string {
	return string(k)
}

// IsValid checks if the key belongs to the canonical set
func (k SpecialistKey) IsValid() bool {
	switch k {
	case SpecialistMarket, SpecialistTech, SpecialistRevenue, SpecialistOps, SpecialistProduct:
		return true
	default:
		return false
	}
}

// AllSpecialists returns every specialist in stage order
func AllSpecialists() []SpecialistKey {
	return []SpecialistKey{
		SpecialistMarket,
		SpecialistProduct,
		SpecialistTech,
		SpecialistRevenue,
		SpecialistOps,
	}
}

var specialistAliases = map[string]SpecialistKey{
	"market":         SpecialistMarket,
	"tech":           SpecialistTech,
	"technology":     SpecialistTech,
	"engineering":    SpecialistTech,
	"revenue":        SpecialistRevenue,
	"ops":            SpecialistOps,
	"operations":     SpecialistOps,
	"product":        SpecialistProduct,
	"product & ux":   SpecialistProduct,
	"product and ux": SpecialistProduct,
	"product/ux":     SpecialistProduct,
	"ux":             SpecialistProduct,
}

// NormalizeSpecialist maps a free-form specialist name ("Tech VP", "Operations",
// "Product & UX") onto the canonical key. The second result is false for names
// outside the canonical set.
func NormalizeSpecialist(name string) (SpecialistKey, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimSuffix(n, " vp")
	n = strings.TrimPrefix(n, "vp of ")
	n = strings.TrimPrefix(n, "vp ")
	n = strings.TrimSpace(strings.TrimSuffix(n, "vp"))

	key, ok := specialistAliases[n]
	return key, ok
}
