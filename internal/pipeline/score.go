package pipeline

import "context"

// FixedScore is a ScoreSource returning a constant. Used where the scoring
// service is not wired, so snapshots still record the bonded amount and
// reason.
type FixedScore float64

func (f FixedScore) CurrentScore(context.Context, string) (float64, error) {
	return float64(f), nil
}
