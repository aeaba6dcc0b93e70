package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"call-monitor/pkg/utils"
)

// PostgresStore is the durable Store implementation, selected with
// STORE_DRIVER=postgres. Merge semantics are identical to MemoryStore:
// merging happens in Go inside a row-locking transaction, so the invariants
// live in one place (Merge / ApplyResult) instead of being duplicated in SQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const schemaSQL = `
CREATE TABLE IF NOT EXISTS call_records (
	id                  TEXT PRIMARY KEY,
	phone               TEXT NOT NULL DEFAULT '',
	contact_name        TEXT NOT NULL DEFAULT '',
	company_name        TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL,
	outcome             TEXT NOT NULL,
	phase_reached       INT NOT NULL DEFAULT 0,
	ts                  TIMESTAMPTZ NOT NULL,
	completed_at        TIMESTAMPTZ,
	duration_seconds    INT,
	tools_called        JSONB NOT NULL DEFAULT '[]',
	negotiation_result  TEXT NOT NULL DEFAULT '',
	client_price        TEXT NOT NULL DEFAULT '',
	callback_date       TEXT NOT NULL DEFAULT '',
	callback_time       TEXT NOT NULL DEFAULT '',
	callback_notes      TEXT NOT NULL DEFAULT '',
	decision_maker_name TEXT NOT NULL DEFAULT '',
	purchase_type       TEXT NOT NULL DEFAULT '',
	annual_consumption  TEXT NOT NULL DEFAULT '',
	close_reason        TEXT NOT NULL DEFAULT '',
	session_id          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS call_records_phone_idx ON call_records (phone);
CREATE INDEX IF NOT EXISTS call_records_ts_idx ON call_records (ts DESC);
`

// EnsureSchema creates the call_records table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

const selectCols = `
id, phone, contact_name, company_name, status, outcome, phase_reached,
ts, completed_at, duration_seconds, tools_called,
negotiation_result, client_price, callback_date, callback_time, callback_notes,
decision_maker_name, purchase_type, annual_consumption, close_reason, session_id
`

func (s *PostgresStore) Upsert(ctx context.Context, rec CallRecord) (CallRecord, error) {
	if rec.ID == "" {
		return CallRecord{}, errors.New("calls: record id required")
	}
	var merged CallRecord
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		prev, err := scanRecord(tx.QueryRowContext(ctx,
			`SELECT `+selectCols+` FROM call_records WHERE id = $1 FOR UPDATE`, rec.ID))
		switch {
		case err == nil:
			merged = Merge(prev, rec)
		case errors.Is(err, sql.ErrNoRows):
			merged = rec
		default:
			return err
		}
		return writeRecord(ctx, tx, merged)
	})
	if err != nil {
		return CallRecord{}, err
	}
	return merged, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (CallRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+selectCols+` FROM call_records WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) List(ctx context.Context) ([]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectCols+` FROM call_records ORDER BY ts DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateByPhone(ctx context.Context, phone string, upd ResultUpdate) (bool, error) {
	if phone == "" {
		return false, errors.New("calls: phone required")
	}
	matched := false
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		rec, err := scanRecord(tx.QueryRowContext(ctx,
			`SELECT `+selectCols+` FROM call_records WHERE phone = $1 ORDER BY ts DESC, id ASC LIMIT 1 FOR UPDATE`, phone))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		matched = true
		return writeRecord(ctx, tx, ApplyResult(rec, upd))
	})
	return matched, err
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM call_records`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (CallRecord, error) {
	var (
		rec         CallRecord
		completedAt sql.NullTime
		duration    sql.NullInt64
		tools       []byte
	)
	err := row.Scan(
		&rec.ID, &rec.Phone, &rec.ContactName, &rec.CompanyName,
		&rec.Status, &rec.Outcome, &rec.PhaseReached,
		&rec.Timestamp, &completedAt, &duration, &tools,
		&rec.NegotiationResult, &rec.ClientPrice,
		&rec.CallbackDate, &rec.CallbackTime, &rec.CallbackNotes,
		&rec.DecisionMakerName, &rec.PurchaseType, &rec.AnnualConsumption,
		&rec.CloseReason, &rec.SessionID,
	)
	if err != nil {
		return CallRecord{}, err
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		rec.CompletedAt = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		rec.DurationSeconds = &d
	}
	if len(tools) > 0 {
		if err := json.Unmarshal(tools, &rec.ToolsCalled); err != nil {
			return CallRecord{}, err
		}
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}

func writeRecord(ctx context.Context, tx *sql.Tx, rec CallRecord) error {
	tools, err := json.Marshal(toolsOrEmpty(rec.ToolsCalled))
	if err != nil {
		return err
	}
	var completedAt sql.NullTime
	if rec.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *rec.CompletedAt, Valid: true}
	}
	var duration sql.NullInt64
	if rec.DurationSeconds != nil {
		duration = sql.NullInt64{Int64: int64(*rec.DurationSeconds), Valid: true}
	}

	const q = `
INSERT INTO call_records (
	id, phone, contact_name, company_name, status, outcome, phase_reached,
	ts, completed_at, duration_seconds, tools_called,
	negotiation_result, client_price, callback_date, callback_time, callback_notes,
	decision_maker_name, purchase_type, annual_consumption, close_reason, session_id
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
	$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
)
ON CONFLICT (id) DO UPDATE SET
	phone = EXCLUDED.phone,
	contact_name = EXCLUDED.contact_name,
	company_name = EXCLUDED.company_name,
	status = EXCLUDED.status,
	outcome = EXCLUDED.outcome,
	phase_reached = EXCLUDED.phase_reached,
	ts = EXCLUDED.ts,
	completed_at = EXCLUDED.completed_at,
	duration_seconds = EXCLUDED.duration_seconds,
	tools_called = EXCLUDED.tools_called,
	negotiation_result = EXCLUDED.negotiation_result,
	client_price = EXCLUDED.client_price,
	callback_date = EXCLUDED.callback_date,
	callback_time = EXCLUDED.callback_time,
	callback_notes = EXCLUDED.callback_notes,
	decision_maker_name = EXCLUDED.decision_maker_name,
	purchase_type = EXCLUDED.purchase_type,
	annual_consumption = EXCLUDED.annual_consumption,
	close_reason = EXCLUDED.close_reason,
	session_id = EXCLUDED.session_id
`
	_, err = tx.ExecContext(ctx, q,
		rec.ID, rec.Phone, rec.ContactName, rec.CompanyName,
		rec.Status, rec.Outcome, rec.PhaseReached,
		rec.Timestamp.UTC(), completedAt, duration, tools,
		rec.NegotiationResult, rec.ClientPrice,
		rec.CallbackDate, rec.CallbackTime, rec.CallbackNotes,
		rec.DecisionMakerName, rec.PurchaseType, rec.AnnualConsumption,
		rec.CloseReason, rec.SessionID,
	)
	return err
}

func toolsOrEmpty(tools []string) []string {
	if tools == nil {
		return []string{}
	}
	return tools
}
