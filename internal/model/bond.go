package model

import "time"

// BondRecord is the last known state of a bond. Amounts are decimal strings;
// money never passes through a float.
type BondRecord struct {
	ID      string `json:"id"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
	Active  bool   `json:"active"`
}

// BondStateUpdate is the effect of applying one withdrawal event to a bond.
// Produced once per processed event, never partially applied.
type BondStateUpdate struct {
	BondID         string    `json:"bond_id"`
	Account        string    `json:"account"`
	PreviousAmount string    `json:"previous_amount"`
	NewAmount      string    `json:"new_amount"`
	Active         bool      `json:"active"`
	UpdatedAt      time.Time `json:"updated_at"`
	TxHash         string    `json:"tx_hash"`
}

// SnapshotReason records why a score-history snapshot was taken.
type SnapshotReason string

const (
	SnapshotWithdrawalFull    SnapshotReason = "withdrawal_full"
	SnapshotWithdrawalPartial SnapshotReason = "withdrawal_partial"
)

// ScoreHistorySnapshot is an append-only record of an account's trust score
// at the moment a significant withdrawal was observed.
type ScoreHistorySnapshot struct {
	Account   string         `json:"account"`
	Score     float64        `json:"score"`
	Amount    string         `json:"amount"`
	Timestamp time.Time      `json:"timestamp"`
	Reason    SnapshotReason `json:"reason"`
	TxHash    string         `json:"tx_hash"`
}
