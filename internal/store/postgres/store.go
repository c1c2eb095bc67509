package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bondwatch/internal/model"
	"bondwatch/internal/store"
)

const cursorName = "ledger_poller"

// Store provides Postgres persistence for bonds, webhooks, score history,
// and the poller cursor. The typed views below satisfy the store contracts.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Bonds returns the BondStore view.
func (s *Store) Bonds() store.BondStore { return bondView{s} }

// Webhooks returns the WebhookStore view.
func (s *Store) Webhooks() store.WebhookStore { return webhookView{s} }

// ScoreHistory returns the ScoreHistoryStore view.
func (s *Store) ScoreHistory() store.ScoreHistoryStore { return scoreView{s} }

// Cursor returns the CursorStore view.
func (s *Store) Cursor() store.CursorStore { return cursorView{s} }

// GetBond returns the last known bond record.
func (s *Store) GetBond(ctx context.Context, bondID string) (model.BondRecord, bool, error) {
	if bondID == "" {
		return model.BondRecord{}, false, fmt.Errorf("bond id is required")
	}
	var rec model.BondRecord
	row := s.pool.QueryRow(ctx, `
		SELECT id, account, amount::text, active FROM bonds WHERE id=$1
	`, bondID)
	if err := row.Scan(&rec.ID, &rec.Account, &rec.Amount, &rec.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.BondRecord{}, false, nil
		}
		return model.BondRecord{}, false, err
	}
	return rec, true, nil
}

// ApplyUpdate upserts the bond state produced by one withdrawal update.
func (s *Store) ApplyUpdate(ctx context.Context, update model.BondStateUpdate) error {
	if update.BondID == "" {
		return fmt.Errorf("bond id is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bonds (id, account, amount, active, updated_at, last_tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			account = EXCLUDED.account,
			amount = EXCLUDED.amount,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at,
			last_tx_hash = EXCLUDED.last_tx_hash
	`,
		update.BondID,
		update.Account,
		update.NewAmount,
		update.Active,
		update.UpdatedAt,
		update.TxHash,
	)
	return err
}

// WebhooksByEvent returns every webhook subscribed to the event type,
// active and inactive, ordered by creation for stable dispatch results.
func (s *Store) WebhooksByEvent(ctx context.Context, event model.EventType) ([]model.WebhookConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, url, events, secret, active
		FROM webhooks
		WHERE $1 = ANY(events)
		ORDER BY created_at, id
	`, string(event))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WebhookConfig
	for rows.Next() {
		cfg, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (s *Store) GetWebhook(ctx context.Context, id string) (model.WebhookConfig, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, url, events, secret, active FROM webhooks WHERE id=$1
	`, id)
	cfg, err := scanWebhook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.WebhookConfig{}, false, nil
		}
		return model.WebhookConfig{}, false, err
	}
	return cfg, true, nil
}

// SetWebhook creates or replaces a webhook configuration, assigning an id
// when the given one is empty.
func (s *Store) SetWebhook(ctx context.Context, cfg model.WebhookConfig) (model.WebhookConfig, error) {
	if cfg.URL == "" {
		return model.WebhookConfig{}, fmt.Errorf("webhook url is required")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	events := make([]string, 0, len(cfg.Events))
	for _, e := range cfg.Events {
		events = append(events, string(e))
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhooks (id, url, events, secret, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			events = EXCLUDED.events,
			secret = EXCLUDED.secret,
			active = EXCLUDED.active,
			updated_at = now()
	`, cfg.ID, cfg.URL, events, cfg.Secret, cfg.Active)
	if err != nil {
		return model.WebhookConfig{}, err
	}
	return cfg, nil
}

// AppendSnapshot inserts one score-history snapshot. Rows are never updated.
func (s *Store) AppendSnapshot(ctx context.Context, snap model.ScoreHistorySnapshot) error {
	if snap.Account == "" {
		return fmt.Errorf("account is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO score_history (account, score, amount, taken_at, reason, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, snap.Account, snap.Score, snap.Amount, snap.Timestamp, string(snap.Reason), snap.TxHash)
	return err
}

// ListSnapshots returns an account's snapshots in the order they were taken.
func (s *Store) ListSnapshots(ctx context.Context, account string) ([]model.ScoreHistorySnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT account, score, amount::text, taken_at, reason, tx_hash
		FROM score_history
		WHERE account=$1
		ORDER BY taken_at, id
	`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScoreHistorySnapshot
	for rows.Next() {
		var snap model.ScoreHistorySnapshot
		var reason string
		if err := rows.Scan(&snap.Account, &snap.Score, &snap.Amount, &snap.Timestamp, &reason, &snap.TxHash); err != nil {
			return nil, err
		}
		snap.Reason = model.SnapshotReason(reason)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// LoadCursor returns the persisted poller cursor.
func (s *Store) LoadCursor(ctx context.Context) (string, bool, error) {
	var cursor string
	row := s.pool.QueryRow(ctx, `SELECT cursor FROM poller_state WHERE name=$1`, cursorName)
	if err := row.Scan(&cursor); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return cursor, true, nil
}

// SaveCursor upserts the poller cursor.
func (s *Store) SaveCursor(ctx context.Context, cursor string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO poller_state (name, cursor, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET cursor = EXCLUDED.cursor, updated_at = now()
	`, cursorName, cursor)
	return err
}

func scanWebhook(row pgx.Row) (model.WebhookConfig, error) {
	var cfg model.WebhookConfig
	var events []string
	if err := row.Scan(&cfg.ID, &cfg.URL, &events, &cfg.Secret, &cfg.Active); err != nil {
		return model.WebhookConfig{}, err
	}
	cfg.Events = make([]model.EventType, 0, len(events))
	for _, e := range events {
		cfg.Events = append(cfg.Events, model.EventType(e))
	}
	return cfg, nil
}

type bondView struct{ s *Store }

func (v bondView) Get(ctx context.Context, bondID string) (model.BondRecord, bool, error) {
	return v.s.GetBond(ctx, bondID)
}

func (v bondView) Apply(ctx context.Context, update model.BondStateUpdate) error {
	return v.s.ApplyUpdate(ctx, update)
}

type webhookView struct{ s *Store }

func (v webhookView) GetByEvent(ctx context.Context, event model.EventType) ([]model.WebhookConfig, error) {
	return v.s.WebhooksByEvent(ctx, event)
}

func (v webhookView) Get(ctx context.Context, id string) (model.WebhookConfig, bool, error) {
	return v.s.GetWebhook(ctx, id)
}

func (v webhookView) Set(ctx context.Context, cfg model.WebhookConfig) (model.WebhookConfig, error) {
	return v.s.SetWebhook(ctx, cfg)
}

type scoreView struct{ s *Store }

func (v scoreView) Append(ctx context.Context, snap model.ScoreHistorySnapshot) error {
	return v.s.AppendSnapshot(ctx, snap)
}

func (v scoreView) List(ctx context.Context, account string) ([]model.ScoreHistorySnapshot, error) {
	return v.s.ListSnapshots(ctx, account)
}

type cursorView struct{ s *Store }

func (v cursorView) Load(ctx context.Context) (string, bool, error) {
	return v.s.LoadCursor(ctx)
}

func (v cursorView) Save(ctx context.Context, cursor string) error {
	return v.s.SaveCursor(ctx, cursor)
}
