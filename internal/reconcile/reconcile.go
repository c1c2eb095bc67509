package reconcile

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bondwatch/internal/model"
)

var snapshotThreshold = decimal.NewFromFloat(0.5)

// Reconcile computes the bond state resulting from applying one withdrawal
// event to the previous record. Pure: no I/O, no clock beyond the event's
// own timestamp fallback.
func Reconcile(prev model.BondRecord, ev model.WithdrawalEvent) (model.BondStateUpdate, error) {
	prevAmount, err := parseAmount(prev.Amount)
	if err != nil {
		return model.BondStateUpdate{}, fmt.Errorf("previous amount: %w", err)
	}
	withdrawn, err := parseAmount(ev.Amount)
	if err != nil {
		return model.BondStateUpdate{}, fmt.Errorf("event amount: %w", err)
	}

	newAmount := prevAmount.Sub(withdrawn)
	if newAmount.IsNegative() {
		newAmount = decimal.Zero
	}

	updatedAt := ev.Timestamp
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	return model.BondStateUpdate{
		BondID:         prev.ID,
		Account:        prev.Account,
		PreviousAmount: prevAmount.String(),
		NewAmount:      newAmount.String(),
		Active:         newAmount.IsPositive(),
		UpdatedAt:      updatedAt,
		TxHash:         ev.TxHash,
	}, nil
}

// ShouldSnapshot reports whether the update warrants a score-history
// snapshot: the bond went inactive, or at least half of the previously
// bonded amount was withdrawn. A zero previous amount never snapshots.
func ShouldSnapshot(update model.BondStateUpdate) bool {
	if !update.Active {
		return true
	}
	prev, err := parseAmount(update.PreviousAmount)
	if err != nil || !prev.IsPositive() {
		return false
	}
	next, err := parseAmount(update.NewAmount)
	if err != nil {
		return false
	}
	return prev.Sub(next).Div(prev).GreaterThanOrEqual(snapshotThreshold)
}

// Reason classifies the snapshot cause. A new amount of zero means the
// withdrawal covered the whole previous bond.
func Reason(update model.BondStateUpdate) model.SnapshotReason {
	next, err := parseAmount(update.NewAmount)
	if err == nil && next.IsZero() {
		return model.SnapshotWithdrawalFull
	}
	return model.SnapshotWithdrawalPartial
}

// BuildSnapshot assembles the append-only snapshot record for an update.
func BuildSnapshot(update model.BondStateUpdate, score float64) model.ScoreHistorySnapshot {
	return model.ScoreHistorySnapshot{
		Account:   update.Account,
		Score:     score,
		Amount:    update.NewAmount,
		Timestamp: update.UpdatedAt,
		Reason:    Reason(update),
		TxHash:    update.TxHash,
	}
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", raw, err)
	}
	return d, nil
}
