package model

import "time"

// IdentityState is the externally observable snapshot of an account's bond.
// The classifier diffs two of these; neither is ever mutated in place.
type IdentityState struct {
	Address      string     `json:"address"`
	BondedAmount string     `json:"bondedAmount"`
	BondStart    *time.Time `json:"bondStart"`
	BondDuration *int64     `json:"bondDuration"`
	Active       bool       `json:"active"`
}
