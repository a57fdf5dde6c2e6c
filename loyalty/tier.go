/*
tier.go - Mapping from lifetime earned jewels to a tier and its benefits

Tiers are derived from cumulative lifetime earnings only: redemptions and
expiry never demote a guest. Thresholds live in an enumerated table so
they can be adjusted from configuration without touching any other logic.
*/
package loyalty

import (
	"fmt"
	"sort"
)

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// TierLevel is one row of the threshold table: the tier is held from
// Threshold lifetime jewels (inclusive) up to the next level's threshold.
type TierLevel struct {
	Tier      Tier
	Threshold int64
	Benefits  []string
}

// TierPolicy holds the threshold table, ordered by ascending threshold.
type TierPolicy struct {
	levels []TierLevel
}

// DefaultTierPolicy returns the standard table:
// bronze < 1000 ≤ silver < 5000 ≤ gold < 15000 ≤ platinum.
func DefaultTierPolicy() *TierPolicy {
	p, _ := NewTierPolicy([]TierLevel{
		{Tier: TierBronze, Threshold: 0, Benefits: []string{
			"Earn jewels on every completed stay",
			"Birthday surprise",
		}},
		{Tier: TierSilver, Threshold: 1000, Benefits: []string{
			"Early check-in when available",
			"5% member discount on direct bookings",
		}},
		{Tier: TierGold, Threshold: 5000, Benefits: []string{
			"Late checkout when available",
			"Complimentary welcome hamper",
			"10% member discount on direct bookings",
		}},
		{Tier: TierPlatinum, Threshold: 15000, Benefits: []string{
			"Guaranteed room upgrade when available",
			"Dedicated concierge line",
			"15% member discount on direct bookings",
		}},
	})
	return p
}

// NewTierPolicy builds a policy from a threshold table. The table must be
// non-empty and its lowest threshold must be zero so every guest has a tier.
func NewTierPolicy(levels []TierLevel) (*TierPolicy, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("tier table is empty")
	}
	sorted := make([]TierLevel, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Threshold < sorted[j].Threshold })

	if sorted[0].Threshold != 0 {
		return nil, fmt.Errorf("lowest tier %q must have threshold 0, got %d",
			sorted[0].Tier, sorted[0].Threshold)
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Threshold == sorted[i-1].Threshold {
			return nil, fmt.Errorf("duplicate tier threshold %d", sorted[i].Threshold)
		}
	}
	return &TierPolicy{levels: sorted}, nil
}

// TierFor returns the tier held at the given lifetime earned total.
func (p *TierPolicy) TierFor(totalEarned int64) Tier {
	current := p.levels[0].Tier
	for _, l := range p.levels {
		if totalEarned >= l.Threshold {
			current = l.Tier
		}
	}
	return current
}

// NextTierThreshold returns the lifetime total needed for the tier above the
// given one. ok is false for the top tier. Display-only ("X jewels to Gold").
func (p *TierPolicy) NextTierThreshold(tier Tier) (int64, bool) {
	for i, l := range p.levels {
		if l.Tier == tier && i+1 < len(p.levels) {
			return p.levels[i+1].Threshold, true
		}
	}
	return 0, false
}

// BenefitsFor returns the benefit descriptions for a tier. Display-only;
// benefits carry no business-rule weight anywhere in the core.
func (p *TierPolicy) BenefitsFor(tier Tier) []string {
	for _, l := range p.levels {
		if l.Tier == tier {
			return l.Benefits
		}
	}
	return nil
}

// Levels returns a copy of the ordered threshold table.
func (p *TierPolicy) Levels() []TierLevel {
	out := make([]TierLevel, len(p.levels))
	copy(out, p.levels)
	return out
}
