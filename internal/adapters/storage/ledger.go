package storage

// ledger.go: registro append-only de señales y de las posiciones copiadas.
//
// Estrategia:
//   - `signal_events`: una fila por transición (created, scored, sized,
//     risk_decision, execution, failed, position_closed). Nunca se actualiza.
//   - `positions`: una fila por posición confirmada; se cierra con exit_price
//     y realized_pnl. Es lo único que se relee al arrancar (open positions y
//     P&L del día) para reconstruir el RiskState.
//   - Importes como TEXT decimal (shopspring/decimal): la suma del P&L diario
//     no acumula error de coma flotante.
//   - Prune automático al arrancar: eventos > 30d, posiciones cerradas > 90d.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS signal_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    signal_id    TEXT NOT NULL,
    stage        TEXT NOT NULL,
    disposition  TEXT NOT NULL,
    source       TEXT NOT NULL,
    market_id    TEXT NOT NULL,
    side         TEXT NOT NULL,
    confidence   INTEGER NOT NULL DEFAULT 0,
    capital      TEXT NOT NULL DEFAULT '0',
    shares       TEXT NOT NULL DEFAULT '0',
    reason       TEXT NOT NULL DEFAULT '',
    exec_status  TEXT NOT NULL DEFAULT '',
    filled_price TEXT NOT NULL DEFAULT '0',
    at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    signal_id    TEXT NOT NULL UNIQUE,
    source       TEXT NOT NULL,
    market_id    TEXT NOT NULL,
    side         TEXT NOT NULL,
    capital      TEXT NOT NULL,
    shares       TEXT NOT NULL,
    entry_price  TEXT NOT NULL,
    opened_at    TEXT NOT NULL,
    closed_at    TEXT,
    exit_price   TEXT,
    realized_pnl TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_signal ON signal_events(signal_id);
CREATE INDEX IF NOT EXISTS idx_events_at     ON signal_events(at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open
    ON positions(market_id, side) WHERE closed_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_positions_closed ON positions(closed_at);
`

const (
	// Layout de ancho fijo: las comparaciones de texto en SQL respetan el orden temporal.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrPositionNotFound is returned when closing a key with no open position.
var ErrPositionNotFound = errors.New("open position not found")

// SQLiteLedger implementa ports.SignalLedger usando SQLite (pure Go, sin CGo).
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger abre (o crea) la base de datos en la ruta dada y aplica el
// schema. No borra nada: la retención es explícita vía Prune.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteLedger: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteLedger: apply schema: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

// Append inserta una transición de señal.
func (l *SQLiteLedger) Append(ctx context.Context, r domain.SignalRecord) error {
	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO signal_events
			(signal_id, stage, disposition, source, market_id, side, confidence,
			 capital, shares, reason, exec_status, filled_price, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SignalID, string(r.Stage), string(r.Disposition), r.Source, r.MarketID, string(r.Side),
		r.Confidence, dec(r.Capital), dec(r.Shares), r.Reason, string(r.ExecStatus),
		dec(r.FilledPrice), ts(r.At),
	); err != nil {
		return fmt.Errorf("storage.Append: %s/%s: %w", r.SignalID, r.Stage, err)
	}
	return nil
}

// SavePosition registra una posición confirmada. Idempotente por signal_id.
func (l *SQLiteLedger) SavePosition(ctx context.Context, p domain.OpenPosition) error {
	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO positions
			(signal_id, source, market_id, side, capital, shares, entry_price, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(signal_id) DO NOTHING`,
		p.SignalID, p.Source, p.Key.MarketID, string(p.Key.Side),
		dec(p.Capital), dec(p.Shares), dec(p.EntryPrice), ts(p.OpenedAt),
	); err != nil {
		return fmt.Errorf("storage.SavePosition: %s: %w", p.Key, err)
	}
	return nil
}

// ClosePosition cierra la posición abierta de key con su P&L realizado.
func (l *SQLiteLedger) ClosePosition(ctx context.Context, key domain.PositionKey, exitPrice, pnl float64, at time.Time) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE positions
		SET closed_at = ?, exit_price = ?, realized_pnl = ?
		WHERE market_id = ? AND side = ? AND closed_at IS NULL`,
		ts(at), dec(exitPrice), dec(pnl), key.MarketID, string(key.Side),
	)
	if err != nil {
		return fmt.Errorf("storage.ClosePosition: %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.ClosePosition: %s: %w", key, ErrPositionNotFound)
	}
	return nil
}

// LoadRiskSnapshot devuelve las posiciones abiertas y el P&L realizado desde dayStart.
func (l *SQLiteLedger) LoadRiskSnapshot(ctx context.Context, dayStart time.Time) ([]domain.OpenPosition, float64, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT signal_id, source, market_id, side, capital, shares, entry_price, opened_at
		FROM positions
		WHERE closed_at IS NULL
		ORDER BY opened_at`)
	if err != nil {
		return nil, 0, fmt.Errorf("storage.LoadRiskSnapshot: query open: %w", err)
	}
	defer rows.Close()

	var open []domain.OpenPosition
	for rows.Next() {
		var p domain.OpenPosition
		var side, capital, shares, entry, openedAt string
		if err := rows.Scan(&p.SignalID, &p.Source, &p.Key.MarketID, &side, &capital, &shares, &entry, &openedAt); err != nil {
			return nil, 0, fmt.Errorf("storage.LoadRiskSnapshot: scan: %w", err)
		}
		p.Key.Side = domain.Side(side)
		p.Capital = flt(capital)
		p.Shares = flt(shares)
		p.EntryPrice = flt(entry)
		p.OpenedAt, _ = time.Parse(timeLayout, openedAt)
		p.Confirmed = true
		open = append(open, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("storage.LoadRiskSnapshot: rows: %w", err)
	}

	pnlRows, err := l.db.QueryContext(ctx,
		`SELECT realized_pnl FROM positions WHERE closed_at IS NOT NULL AND closed_at >= ?`,
		ts(dayStart),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage.LoadRiskSnapshot: query pnl: %w", err)
	}
	defer pnlRows.Close()

	total := decimal.Zero
	for pnlRows.Next() {
		var s sql.NullString
		if err := pnlRows.Scan(&s); err != nil {
			return nil, 0, fmt.Errorf("storage.LoadRiskSnapshot: scan pnl: %w", err)
		}
		if d, err := decimal.NewFromString(s.String); err == nil {
			total = total.Add(d)
		}
	}
	if err := pnlRows.Err(); err != nil {
		return nil, 0, fmt.Errorf("storage.LoadRiskSnapshot: pnl rows: %w", err)
	}

	return open, total.InexactFloat64(), nil
}

// Recent devuelve las últimas transiciones registradas, más recientes primero.
func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]domain.SignalRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT signal_id, stage, disposition, source, market_id, side, confidence,
		       capital, shares, reason, exec_status, filled_price, at
		FROM signal_events
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.Recent: query: %w", err)
	}
	defer rows.Close()

	var out []domain.SignalRecord
	for rows.Next() {
		var r domain.SignalRecord
		var stage, disp, side, capital, shares, exec, filled, at string
		if err := rows.Scan(&r.SignalID, &stage, &disp, &r.Source, &r.MarketID, &side, &r.Confidence,
			&capital, &shares, &r.Reason, &exec, &filled, &at); err != nil {
			return nil, fmt.Errorf("storage.Recent: scan: %w", err)
		}
		r.Stage = domain.SignalStage(stage)
		r.Disposition = domain.Disposition(disp)
		r.Side = domain.Side(side)
		r.ExecStatus = domain.ExecutionStatus(exec)
		r.Capital = flt(capital)
		r.Shares = flt(shares)
		r.FilledPrice = flt(filled)
		r.At, _ = time.Parse(timeLayout, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// --- helpers internos ---

// Prune borra eventos más antiguos que events y posiciones cerradas más
// antiguas que closed. Un valor <= 0 conserva esa tabla entera. Las
// posiciones abiertas nunca se borran.
func (l *SQLiteLedger) Prune(ctx context.Context, events, closed time.Duration) (int64, error) {
	now := time.Now().UTC()
	var total int64

	if events > 0 {
		res, err := l.db.ExecContext(ctx, `DELETE FROM signal_events WHERE at < ?`, ts(now.Add(-events)))
		if err != nil {
			return total, fmt.Errorf("storage.Prune: events: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if closed > 0 {
		res, err := l.db.ExecContext(ctx,
			`DELETE FROM positions WHERE closed_at IS NOT NULL AND closed_at < ?`, ts(now.Add(-closed)))
		if err != nil {
			return total, fmt.Errorf("storage.Prune: positions: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func dec(f float64) string {
	return decimal.NewFromFloat(f).String()
}

func flt(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
