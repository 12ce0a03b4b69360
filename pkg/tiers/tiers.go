// Package tiers defines subscription tier definitions for Steward.
// Tiers map to operation scopes and entity quotas.
package tiers

// TierID identifies a subscription tier.
type TierID string

const (
	TierFree    TierID = "free"
	TierStarter TierID = "starter"
	TierPro     TierID = "pro"
)

// Quotas defines entity creation limits for a tier.
type Quotas struct {
	MaxCustomers  int64 // -1 = unlimited
	MaxWorkOrders int64 // -1 = unlimited
	MaxQuotes     int64 // -1 = unlimited
	MaxCharges    int64 // -1 = unlimited
}

// Tier represents a subscription tier with its scopes and quotas.
type Tier struct {
	ID            TierID
	Name          string
	Description   string
	Rank          int // ordering; higher ranks are supersets of lower ones
	Scopes        []string
	Quotas        Quotas
	PricePerMonth int64 // cents, -1 = custom pricing
}

// All available tiers
var (
	Free = Tier{
		ID:          TierFree,
		Name:        "Free",
		Description: "For solo operators trying Steward out",
		Rank:        0,
		Scopes:      []string{"core.read", "core.write"},
		Quotas: Quotas{
			MaxCustomers:  25,
			MaxWorkOrders: 50,
			MaxQuotes:     0,
			MaxCharges:    0,
		},
		PricePerMonth: 0,
	}

	Starter = Tier{
		ID:          TierStarter,
		Name:        "Starter",
		Description: "For small crews quoting work",
		Rank:        1,
		Scopes:      []string{"core.read", "core.write", "quotes.write"},
		Quotas: Quotas{
			MaxCustomers:  500,
			MaxWorkOrders: 2_000,
			MaxQuotes:     500,
			MaxCharges:    0,
		},
		PricePerMonth: 2900, // $29
	}

	Pro = Tier{
		ID:          TierPro,
		Name:        "Pro",
		Description: "For businesses billing through Steward",
		Rank:        2,
		Scopes:      []string{"all"},
		Quotas: Quotas{
			MaxCustomers:  -1, // unlimited
			MaxWorkOrders: -1,
			MaxQuotes:     -1,
			MaxCharges:    -1,
		},
		PricePerMonth: 9900, // $99
	}

	// AllTiers contains all available tiers
	AllTiers = map[TierID]Tier{
		TierFree:    Free,
		TierStarter: Starter,
		TierPro:     Pro,
	}
)

// Get returns a tier by ID, or nil if not found.
func Get(id TierID) *Tier {
	tier, ok := AllTiers[id]
	if !ok {
		return nil
	}
	return &tier
}

// HasScope checks if a tier carries a specific operation scope.
func (t *Tier) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope || s == "all" {
			return true
		}
	}
	return false
}

// AtLeast reports whether t ranks at or above other.
func (t *Tier) AtLeast(other TierID) bool {
	o := Get(other)
	if o == nil {
		return false
	}
	return t.Rank >= o.Rank
}

// IsUnlimited checks if a quota is unlimited (-1).
func IsUnlimited(limit int64) bool {
	return limit < 0
}
