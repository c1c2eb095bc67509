package classify

import (
	"github.com/shopspring/decimal"

	"bondwatch/internal/model"
)

// Classify determines which lifecycle event, if any, the transition from
// prev to cur represents. prev may be nil for a first observation. Rules
// are evaluated in priority order; the first match wins:
//
//  1. created:   no previous active bond, current is active
//  2. withdrawn: was active, now inactive with a zero bonded amount
//  3. slashed:   both active, bonded amount strictly decreased
//
// Anything else (no-op updates, amount increases, inactive-to-inactive) is
// not a lifecycle transition and reports no event.
func Classify(prev *model.IdentityState, cur model.IdentityState) (model.EventType, bool) {
	if (prev == nil || !prev.Active) && cur.Active {
		return model.EventBondCreated, true
	}
	if prev == nil {
		return "", false
	}

	if prev.Active && !cur.Active && amount(cur.BondedAmount).IsZero() {
		return model.EventBondWithdrawn, true
	}

	if prev.Active && cur.Active && amount(cur.BondedAmount).LessThan(amount(prev.BondedAmount)) {
		return model.EventBondSlashed, true
	}

	return "", false
}

// amount parses a decimal-string amount, treating malformed or empty input
// as zero so classification stays total over arbitrary stored state.
func amount(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}
