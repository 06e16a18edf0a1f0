package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tradeguard/internal/application/port"
	"tradeguard/internal/domain/model"
	"tradeguard/internal/infrastructure/storage"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS positions (
  symbol TEXT PRIMARY KEY,
  quantity REAL NOT NULL,
  avg_cost REAL NOT NULL,
  current_price REAL NOT NULL DEFAULT 0,
  unrealized_pnl REAL NOT NULL DEFAULT 0,
  realized_pnl REAL NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS price_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  symbol TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  open REAL NOT NULL,
  high REAL NOT NULL,
  low REAL NOT NULL,
  close REAL NOT NULL,
  volume REAL NOT NULL DEFAULT 0,
  UNIQUE(symbol, ts_ms)
);
CREATE INDEX IF NOT EXISTS idx_price_history_symbol_ts ON price_history(symbol, ts_ms);

CREATE TABLE IF NOT EXISTS performance_metrics (
  date TEXT NOT NULL,
  strategy TEXT NOT NULL DEFAULT '',
  total_pnl REAL NOT NULL DEFAULT 0,
  realized_pnl REAL NOT NULL DEFAULT 0,
  unrealized_pnl REAL NOT NULL DEFAULT 0,
  sharpe_ratio REAL NOT NULL DEFAULT 0,
  sortino_ratio REAL NOT NULL DEFAULT 0,
  max_drawdown REAL NOT NULL DEFAULT 0,
  current_drawdown REAL NOT NULL DEFAULT 0,
  win_rate REAL NOT NULL DEFAULT 0,
  profit_factor REAL NOT NULL DEFAULT 0,
  avg_win REAL NOT NULL DEFAULT 0,
  avg_loss REAL NOT NULL DEFAULT 0,
  total_trades INTEGER NOT NULL DEFAULT 0,
  winning_trades INTEGER NOT NULL DEFAULT 0,
  losing_trades INTEGER NOT NULL DEFAULT 0,
  portfolio_value REAL NOT NULL DEFAULT 0,
  cash_balance REAL NOT NULL DEFAULT 0,
  exposure REAL NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY(date, strategy)
);

CREATE TABLE IF NOT EXISTS trades (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  quantity REAL NOT NULL,
  price REAL NOT NULL,
  commission REAL NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  strategy TEXT NOT NULL DEFAULT '',
  order_id TEXT NOT NULL DEFAULT '',
  pnl REAL,
  ts_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts_ms);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);

CREATE TABLE IF NOT EXISTS risk_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  event_id TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL,
  symbol TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  payload TEXT NOT NULL DEFAULT '',
  ts_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_risk_events_ts ON risk_events(ts_ms);

CREATE TABLE IF NOT EXISTS latest_prices (
  symbol TEXT PRIMARY KEY,
  price REAL NOT NULL,
  ts_ms INTEGER NOT NULL
);
`)
	return err
}

func (r *Repo) UpsertPosition(ctx context.Context, pos *model.Position) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions(`+storage.PositionColumns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
		quantity=excluded.quantity, avg_cost=excluded.avg_cost, current_price=excluded.current_price,
		unrealized_pnl=excluded.unrealized_pnl, realized_pnl=excluded.realized_pnl, updated_at=excluded.updated_at
	`, storage.PositionArgs(pos)...)
	return err
}

func (r *Repo) GetPosition(ctx context.Context, symbol string) (*model.Position, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+storage.PositionColumns+` FROM positions WHERE symbol=?`, symbol)
	p, err := storage.ScanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	return p, err
}

func (r *Repo) ListPositions(ctx context.Context) ([]*model.Position, error) {
	return r.queryPositions(ctx, `SELECT `+storage.PositionColumns+` FROM positions ORDER BY symbol`)
}

func (r *Repo) OpenPositions(ctx context.Context) ([]*model.Position, error) {
	return r.queryPositions(ctx, `SELECT `+storage.PositionColumns+` FROM positions WHERE quantity > 0 ORDER BY symbol`)
}

func (r *Repo) queryPositions(ctx context.Context, query string) ([]*model.Position, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Position
	for rows.Next() {
		p, err := storage.ScanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) InsertPriceBar(ctx context.Context, bar *model.PriceBar) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO price_history(symbol, ts_ms, open, high, low, close, volume)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, ts_ms) DO NOTHING
	`, bar.Symbol, storage.ToMillis(bar.Timestamp), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	return err
}

func (r *Repo) ClosingPrices(ctx context.Context, symbol string, since time.Time) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT close FROM price_history WHERE symbol=? AND ts_ms>=? ORDER BY ts_ms ASC`,
		symbol, storage.ToMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) UpsertPerformance(ctx context.Context, snap *model.PerformanceSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO performance_metrics(`+storage.PerformanceColumns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, strategy) DO UPDATE SET
		total_pnl=excluded.total_pnl, realized_pnl=excluded.realized_pnl, unrealized_pnl=excluded.unrealized_pnl,
		sharpe_ratio=excluded.sharpe_ratio, sortino_ratio=excluded.sortino_ratio,
		max_drawdown=excluded.max_drawdown, current_drawdown=excluded.current_drawdown,
		win_rate=excluded.win_rate, profit_factor=excluded.profit_factor, avg_win=excluded.avg_win, avg_loss=excluded.avg_loss,
		total_trades=excluded.total_trades, winning_trades=excluded.winning_trades, losing_trades=excluded.losing_trades,
		portfolio_value=excluded.portfolio_value, cash_balance=excluded.cash_balance, exposure=excluded.exposure,
		updated_at=excluded.updated_at
	`, storage.PerformanceArgs(snap)...)
	return err
}

// DailyPerformance strategy 为空时优先取无策略的行
func (r *Repo) DailyPerformance(ctx context.Context, day time.Time, strategy string) (*model.PerformanceSnapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+storage.PerformanceColumns+` FROM performance_metrics
		WHERE date=? AND (?='' OR strategy=?)
		ORDER BY strategy='' DESC, updated_at DESC
		LIMIT 1
	`, storage.DateKey(day), strategy, strategy)
	snap, err := storage.ScanPerformance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return snap, err
}

func (r *Repo) RecentPerformance(ctx context.Context, since time.Time, strategy string) ([]*model.PerformanceSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+storage.PerformanceColumns+` FROM performance_metrics
		WHERE date>=? AND (?='' OR strategy=?)
		ORDER BY date DESC
	`, storage.DateKey(since), strategy, strategy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PerformanceSnapshot
	for rows.Next() {
		s, err := storage.ScanPerformance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) InsertTrade(ctx context.Context, trade *model.Trade) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO trades(symbol, side, quantity, price, commission, status, strategy, order_id, pnl, ts_ms)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, storage.TradeArgs(trade)...)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		trade.ID = id
	}
	return nil
}

func (r *Repo) ListTrades(ctx context.Context, since time.Time, strategy string) ([]*model.Trade, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+storage.TradeColumns+` FROM trades
		WHERE ts_ms>=? AND (?='' OR strategy=?)
		ORDER BY ts_ms ASC, id ASC
	`, storage.ToMillis(since), strategy, strategy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Trade
	for rows.Next() {
		t, err := storage.ScanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) PublishRiskEvent(ctx context.Context, ev *model.RiskEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO risk_events(`+storage.RiskEventColumns+`)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`, storage.RiskEventArgs(ev)...)
	return err
}

func (r *Repo) ListRiskEvents(ctx context.Context, since time.Time, limit int) ([]*model.RiskEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+storage.RiskEventColumns+` FROM risk_events
		WHERE ts_ms>=?
		ORDER BY ts_ms DESC, id DESC
		LIMIT ?
	`, storage.ToMillis(since), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.RiskEvent
	for rows.Next() {
		e, err := storage.ScanRiskEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) PublishLatestPrice(ctx context.Context, symbol string, price float64, ts time.Time) error {
	if price <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO latest_prices(symbol, price, ts_ms)
		VALUES(?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
		price=excluded.price, ts_ms=excluded.ts_ms
	`, symbol, price, storage.ToMillis(ts))
	return err
}

var _ port.Repository = (*Repo)(nil)
