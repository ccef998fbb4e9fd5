package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ProximityConstraint asks for homes within MaxMiles of a place the family
// needs to reach (school, work, clinic).
type ProximityConstraint struct {
	Label    string  `json:"label"`
	Address  string  `json:"address"`
	MaxMiles float64 `json:"max_miles"`
}

// Preferences is the family's search criteria at a point in time.
type Preferences struct {
	Budget           decimal.Decimal       `json:"budget"`
	MinBedrooms      int                   `json:"min_bedrooms"`
	MinBathrooms     float64               `json:"min_bathrooms"`
	RequiredFeatures []string              `json:"required_features,omitempty"`
	MoveTimeline     string                `json:"move_timeline,omitempty"`
	Proximity        []ProximityConstraint `json:"proximity,omitempty"`
}

func (p Preferences) clone() Preferences {
	p.RequiredFeatures = append([]string(nil), p.RequiredFeatures...)
	p.Proximity = append([]ProximityConstraint(nil), p.Proximity...)
	return p
}

// NormalizePreferences trims, de-duplicates features and validates ranges.
func NormalizePreferences(p Preferences) (Preferences, error) {
	if p.Budget.IsNegative() {
		return Preferences{}, Validation("budget must not be negative")
	}
	if p.MinBedrooms < 0 || p.MinBathrooms < 0 {
		return Preferences{}, Validation("bedroom and bathroom minimums must not be negative")
	}
	out := p.clone()
	out.MoveTimeline = strings.TrimSpace(p.MoveTimeline)

	seen := make(map[string]struct{}, len(p.RequiredFeatures))
	out.RequiredFeatures = out.RequiredFeatures[:0]
	for _, f := range p.RequiredFeatures {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out.RequiredFeatures = append(out.RequiredFeatures, f)
	}

	for i, c := range out.Proximity {
		c.Label = strings.TrimSpace(c.Label)
		c.Address = strings.TrimSpace(c.Address)
		if c.Address == "" {
			return Preferences{}, Validation("proximity constraint %d: address is required", i)
		}
		if c.MaxMiles <= 0 {
			return Preferences{}, Validation("proximity constraint %d: max miles must be greater than zero", i)
		}
		out.Proximity[i] = c
	}
	return out, nil
}
