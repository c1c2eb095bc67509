package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bondwatch/internal/classify"
	"bondwatch/internal/model"
	"bondwatch/internal/reconcile"
	"bondwatch/internal/storage"
	"bondwatch/internal/store"
)

// ScoreSource provides the current trust score for an account. Implemented
// by the identity service; only consulted when a snapshot is taken.
type ScoreSource interface {
	CurrentScore(ctx context.Context, account string) (float64, error)
}

// Emitter dispatches a lifecycle event to subscribers.
type Emitter interface {
	Emit(ctx context.Context, event model.EventType, data model.IdentityState) ([]model.WebhookDeliveryResult, error)
}

// Processor applies one withdrawal event to local state and notifies
// subscribers of the resulting lifecycle transition, if any.
type Processor struct {
	bonds   store.BondStore
	history store.ScoreHistoryStore
	scores  ScoreSource
	emitter Emitter
	archive storage.Archive
	logger  *zap.Logger
}

// NewProcessor builds a Processor. The archive and emitter may be nil when
// archiving or notification is disabled.
func NewProcessor(bonds store.BondStore, history store.ScoreHistoryStore, scores ScoreSource, emitter Emitter, archive storage.Archive, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		bonds:   bonds,
		history: history,
		scores:  scores,
		emitter: emitter,
		archive: archive,
		logger:  logger,
	}
}

// HandleWithdrawal reconciles one withdrawal event against the stored bond
// state, persists the outcome, snapshots the score when the policy fires,
// and emits the classified lifecycle event to subscribers.
func (p *Processor) HandleWithdrawal(ctx context.Context, ev model.WithdrawalEvent) error {
	prev, found, err := p.bonds.Get(ctx, ev.BondID)
	if err != nil {
		return fmt.Errorf("load bond %s: %w", ev.BondID, err)
	}
	if !found {
		prev = model.BondRecord{
			ID:      ev.BondID,
			Account: ev.SourceAccount,
			Amount:  "0",
			Active:  false,
		}
	}
	prevState := identityState(prev)

	update, err := reconcile.Reconcile(prev, ev)
	if err != nil {
		return fmt.Errorf("reconcile bond %s: %w", ev.BondID, err)
	}

	if err := p.bonds.Apply(ctx, update); err != nil {
		return fmt.Errorf("apply update for bond %s: %w", ev.BondID, err)
	}

	if p.archive != nil {
		if err := p.archive.Append(ev); err != nil {
			// Archival is observability, not state; a failed append must
			// not block reconciliation.
			p.logger.Warn("archive withdrawal event failed",
				zap.String("operation_id", ev.OperationID),
				zap.Error(err),
			)
		}
	}

	if reconcile.ShouldSnapshot(update) {
		if err := p.takeSnapshot(ctx, update); err != nil {
			p.logger.Error("score snapshot failed",
				zap.String("account", update.Account),
				zap.Error(err),
			)
		}
	}

	curState := identityState(model.BondRecord{
		ID:      update.BondID,
		Account: update.Account,
		Amount:  update.NewAmount,
		Active:  update.Active,
	})

	event, ok := classify.Classify(&prevState, curState)
	if !ok || p.emitter == nil {
		return nil
	}

	results, err := p.emitter.Emit(ctx, event, curState)
	if err != nil {
		return fmt.Errorf("emit %s for bond %s: %w", event, ev.BondID, err)
	}

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	p.logger.Info("lifecycle event dispatched",
		zap.String("event", string(event)),
		zap.String("bond_id", ev.BondID),
		zap.Int("webhooks", len(results)),
		zap.Int("failed", failed),
	)

	return nil
}

func (p *Processor) takeSnapshot(ctx context.Context, update model.BondStateUpdate) error {
	var score float64
	if p.scores != nil {
		var err error
		score, err = p.scores.CurrentScore(ctx, update.Account)
		if err != nil {
			return fmt.Errorf("current score: %w", err)
		}
	}
	snap := reconcile.BuildSnapshot(update, score)
	if err := p.history.Append(ctx, snap); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

func identityState(rec model.BondRecord) model.IdentityState {
	return model.IdentityState{
		Address:      rec.Account,
		BondedAmount: rec.Amount,
		Active:       rec.Active,
	}
}
