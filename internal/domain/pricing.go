package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	GenderMen   = "men"
	GenderWomen = "women"

	LevelBasic   = "basic"
	LevelAdvance = "advance"

	PackageTypeBasic   = "Basic"
	PackageTypePremium = "Premium"
	PackageTypeAdvance = "Advance"
)

var ErrNoPrice = errors.New("package has no billable price")

// PriceLine is one billable option of a package.
type PriceLine struct {
	Gender       string          `json:"gender,omitempty"`
	ServiceLevel string          `json:"serviceLevel,omitempty"`
	Type         string          `json:"type"`
	Price        decimal.Decimal `json:"price"`
}

// PackagePricing resolves a service selection to a single billable price.
// Implemented by FlatPricing and SegmentedPricing.
type PackagePricing interface {
	Options() []PriceLine
	Resolve(gender, level string) (PriceLine, error)
}

type FlatPricing struct {
	Price decimal.Decimal
	Type  string
}

func (p FlatPricing) Options() []PriceLine {
	return []PriceLine{{Type: p.Type, Price: p.Price}}
}

// Resolve ignores gender and level: a flat package has a single price.
func (p FlatPricing) Resolve(_, _ string) (PriceLine, error) {
	return PriceLine{Type: p.Type, Price: p.Price}, nil
}

type SegmentedPricing struct {
	Men   *TierPricing
	Women *TierPricing
}

func (p SegmentedPricing) Options() []PriceLine {
	lines := make([]PriceLine, 0, 4)
	lines = appendTier(lines, GenderMen, p.Men)
	lines = appendTier(lines, GenderWomen, p.Women)
	return lines
}

func appendTier(lines []PriceLine, gender string, tier *TierPricing) []PriceLine {
	if tier == nil {
		return lines
	}
	if tier.Basic != nil {
		lines = append(lines, PriceLine{Gender: gender, ServiceLevel: LevelBasic, Type: PackageTypeBasic, Price: *tier.Basic})
	}
	if tier.Advance != nil {
		lines = append(lines, PriceLine{Gender: gender, ServiceLevel: LevelAdvance, Type: PackageTypeAdvance, Price: *tier.Advance})
	}
	return lines
}

// Resolve picks the price for gender and level. Blank values fall back to the
// first available option, basic before advance.
func (p SegmentedPricing) Resolve(gender, level string) (PriceLine, error) {
	gender = strings.ToLower(strings.TrimSpace(gender))
	level = strings.ToLower(strings.TrimSpace(level))

	var match *PriceLine
	for _, line := range p.Options() {
		if gender != "" && line.Gender != gender {
			continue
		}
		if level != "" && line.ServiceLevel != level {
			continue
		}
		line := line
		match = &line
		break
	}
	if match == nil {
		label := strings.TrimSpace(gender + " " + level)
		if label == "" {
			return PriceLine{}, ErrNoPrice
		}
		return PriceLine{}, fmt.Errorf("%w for %s", ErrNoPrice, label)
	}
	return *match, nil
}

// Pricing returns the pricing variant in effect for the package. Gender
// segmented pricing wins over the legacy flat price when both are present.
func (p Package) Pricing() PackagePricing {
	if p.MenPricing != nil || p.WomenPricing != nil {
		return SegmentedPricing{Men: p.MenPricing, Women: p.WomenPricing}
	}
	if p.Price != nil {
		kind := p.Type
		if kind == "" {
			kind = PackageTypeBasic
		}
		return FlatPricing{Price: *p.Price, Type: kind}
	}
	return SegmentedPricing{}
}

// Billable reports whether at least one price can be resolved.
func (p Package) Billable() bool {
	return len(p.Pricing().Options()) > 0
}
