package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"bondwatch/internal/ledger"
	"bondwatch/internal/model"
	"bondwatch/internal/store"
)

// Source fetches one page of ledger operations strictly after a cursor, in
// ascending order. Implemented by ledger.Client; faked in tests.
type Source interface {
	Operations(ctx context.Context, cursor string, limit int) ([]ledger.OperationRecord, error)
}

// Handler processes one withdrawal event. Errors are logged per event and
// never stop the loop.
type Handler func(ctx context.Context, ev model.WithdrawalEvent) error

// Config holds poller settings.
type Config struct {
	PageSize      int
	Interval      time.Duration
	SourceAccount string
	Filter        Filter
	BondID        BondIDFunc
}

// Poller is a long-running loop that converts qualifying ledger operations
// into withdrawal events. Exactly one cycle runs at a time; the next cycle
// is scheduled a fixed interval after the previous one completes, whether
// it succeeded or failed.
type Poller struct {
	cfg     Config
	source  Source
	handler Handler
	cursors store.CursorStore
	logger  *zap.Logger

	mu     sync.Mutex
	cursor string
	active bool
	stop   chan struct{}
	done   chan struct{}
}

// New builds a Poller. cursors may be nil to keep the cursor in memory only.
func New(cfg Config, source Source, handler Handler, cursors store.CursorStore, logger *zap.Logger) *Poller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Filter == nil {
		cfg.Filter = DefaultFilter(cfg.SourceAccount)
	}
	if cfg.BondID == nil {
		cfg.BondID = DefaultBondID
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		handler: handler,
		cursors: cursors,
		logger:  logger,
	}
}

// Start transitions the poller to running and begins polling. Calling
// Start on a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		return
	}
	p.active = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stop, p.done)

	p.logger.Info("poller started",
		zap.Int("page_size", p.cfg.PageSize),
		zap.Duration("interval", p.cfg.Interval),
		zap.String("source_account", p.cfg.SourceAccount),
	)
}

// Stop cancels the pending cycle timer and waits for any in-flight cycle
// to finish. Calling Stop on a stopped poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	stop, done := p.stop, p.done
	p.mu.Unlock()

	close(stop)
	<-done
	p.logger.Info("poller stopped")
}

// Active reports whether the poller is running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Cursor returns the current resumption token.
func (p *Poller) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// SetCursor replaces the resumption token, typically during recovery
// before Start.
func (p *Poller) SetCursor(cursor string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = cursor
}

func (p *Poller) run(stop, done chan struct{}) {
	defer close(done)

	for {
		p.cycle(context.Background())

		timer := time.NewTimer(p.cfg.Interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// cycle fetches and processes one page. Fetch errors leave the cursor
// untouched so the next cycle retries the same page.
func (p *Poller) cycle(ctx context.Context) {
	cursor := p.Cursor()

	records, err := p.source.Operations(ctx, cursor, p.cfg.PageSize)
	if err != nil {
		p.logger.Warn("fetch operations failed", zap.String("cursor", cursor), zap.Error(err))
		return
	}
	if len(records) == 0 {
		p.logger.Debug("no new operations", zap.String("cursor", cursor))
		return
	}

	processed := 0
	for _, op := range records {
		if !p.cfg.Filter(op) {
			continue
		}
		ev := p.parse(op)
		if err := p.handler(ctx, ev); err != nil {
			p.logger.Error("process withdrawal failed",
				zap.String("operation_id", ev.OperationID),
				zap.String("bond_id", ev.BondID),
				zap.Error(err),
			)
			continue
		}
		processed++
	}

	// The cursor moves past the whole page even when individual events
	// failed; a poisoned event must not wedge the stream.
	last := records[len(records)-1].PagingToken
	p.SetCursor(last)
	if p.cursors != nil {
		if err := p.cursors.Save(ctx, last); err != nil {
			p.logger.Error("persist cursor failed", zap.String("cursor", last), zap.Error(err))
		}
	}

	p.logger.Info("poll cycle complete",
		zap.Int("fetched", len(records)),
		zap.Int("processed", processed),
		zap.String("cursor", last),
	)
}

func (p *Poller) parse(op ledger.OperationRecord) model.WithdrawalEvent {
	return model.WithdrawalEvent{
		OperationID:   op.ID,
		PagingToken:   op.PagingToken,
		OperationType: op.Type,
		Timestamp:     op.CreatedAt,
		BondID:        p.cfg.BondID(op),
		SourceAccount: operationAccount(op),
		Amount:        op.Amount,
		Asset:         op.Asset,
		TxHash:        op.TxHash,
		OperationIdx:  op.Index,
	}
}
