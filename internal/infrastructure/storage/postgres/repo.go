package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tradeguard/internal/application/port"
	"tradeguard/internal/domain/model"
	"tradeguard/internal/infrastructure/storage"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS positions (
  symbol TEXT PRIMARY KEY,
  quantity DOUBLE PRECISION NOT NULL,
  avg_cost DOUBLE PRECISION NOT NULL,
  current_price DOUBLE PRECISION NOT NULL DEFAULT 0,
  unrealized_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
  realized_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS price_history (
  id BIGSERIAL PRIMARY KEY,
  symbol TEXT NOT NULL,
  ts_ms BIGINT NOT NULL,
  open DOUBLE PRECISION NOT NULL,
  high DOUBLE PRECISION NOT NULL,
  low DOUBLE PRECISION NOT NULL,
  close DOUBLE PRECISION NOT NULL,
  volume DOUBLE PRECISION NOT NULL DEFAULT 0,
  UNIQUE(symbol, ts_ms)
);
CREATE INDEX IF NOT EXISTS idx_price_history_symbol_ts ON price_history(symbol, ts_ms);

CREATE TABLE IF NOT EXISTS performance_metrics (
  date TEXT NOT NULL,
  strategy TEXT NOT NULL DEFAULT '',
  total_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
  realized_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
  unrealized_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
  sharpe_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
  sortino_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
  max_drawdown DOUBLE PRECISION NOT NULL DEFAULT 0,
  current_drawdown DOUBLE PRECISION NOT NULL DEFAULT 0,
  win_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
  profit_factor DOUBLE PRECISION NOT NULL DEFAULT 0,
  avg_win DOUBLE PRECISION NOT NULL DEFAULT 0,
  avg_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
  total_trades INTEGER NOT NULL DEFAULT 0,
  winning_trades INTEGER NOT NULL DEFAULT 0,
  losing_trades INTEGER NOT NULL DEFAULT 0,
  portfolio_value DOUBLE PRECISION NOT NULL DEFAULT 0,
  cash_balance DOUBLE PRECISION NOT NULL DEFAULT 0,
  exposure DOUBLE PRECISION NOT NULL DEFAULT 0,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY(date, strategy)
);

CREATE TABLE IF NOT EXISTS trades (
  id BIGSERIAL PRIMARY KEY,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  quantity DOUBLE PRECISION NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  commission DOUBLE PRECISION NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  strategy TEXT NOT NULL DEFAULT '',
  order_id TEXT NOT NULL DEFAULT '',
  pnl DOUBLE PRECISION,
  ts_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts_ms);

CREATE TABLE IF NOT EXISTS risk_events (
  id BIGSERIAL PRIMARY KEY,
  event_id TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL,
  symbol TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  payload TEXT NOT NULL DEFAULT '',
  ts_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_risk_events_ts ON risk_events(ts_ms);

CREATE TABLE IF NOT EXISTS latest_prices (
  symbol TEXT PRIMARY KEY,
  price DOUBLE PRECISION NOT NULL,
  ts_ms BIGINT NOT NULL
);
`)
	return err
}

func (r *Repo) UpsertPosition(ctx context.Context, pos *model.Position) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions(`+storage.PositionColumns+`)
		VALUES($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT(symbol) DO UPDATE SET
		quantity=EXCLUDED.quantity, avg_cost=EXCLUDED.avg_cost, current_price=EXCLUDED.current_price,
		unrealized_pnl=EXCLUDED.unrealized_pnl, realized_pnl=EXCLUDED.realized_pnl, updated_at=EXCLUDED.updated_at
	`, storage.PositionArgs(pos)...)
	return err
}

func (r *Repo) GetPosition(ctx context.Context, symbol string) (*model.Position, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+storage.PositionColumns+` FROM positions WHERE symbol=$1`, symbol)
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
		VALUES($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT(symbol, ts_ms) DO NOTHING
	`, bar.Symbol, storage.ToMillis(bar.Timestamp), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	return err
}

func (r *Repo) ClosingPrices(ctx context.Context, symbol string, since time.Time) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT close FROM price_history WHERE symbol=$1 AND ts_ms>=$2 ORDER BY ts_ms ASC`,
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
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT(date, strategy) DO UPDATE SET
		total_pnl=EXCLUDED.total_pnl, realized_pnl=EXCLUDED.realized_pnl, unrealized_pnl=EXCLUDED.unrealized_pnl,
		sharpe_ratio=EXCLUDED.sharpe_ratio, sortino_ratio=EXCLUDED.sortino_ratio,
		max_drawdown=EXCLUDED.max_drawdown, current_drawdown=EXCLUDED.current_drawdown,
		win_rate=EXCLUDED.win_rate, profit_factor=EXCLUDED.profit_factor, avg_win=EXCLUDED.avg_win, avg_loss=EXCLUDED.avg_loss,
		total_trades=EXCLUDED.total_trades, winning_trades=EXCLUDED.winning_trades, losing_trades=EXCLUDED.losing_trades,
		portfolio_value=EXCLUDED.portfolio_value, cash_balance=EXCLUDED.cash_balance, exposure=EXCLUDED.exposure,
		updated_at=EXCLUDED.updated_at
	`, storage.PerformanceArgs(snap)...)
	return err
}

func (r *Repo) DailyPerformance(ctx context.Context, day time.Time, strategy string) (*model.PerformanceSnapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+storage.PerformanceColumns+` FROM performance_metrics
		WHERE date=$1 AND ($2='' OR strategy=$2)
		ORDER BY (strategy='') DESC, updated_at DESC
		LIMIT 1
	`, storage.DateKey(day), strategy)
	snap, err := storage.ScanPerformance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return snap, err
}

func (r *Repo) RecentPerformance(ctx context.Context, since time.Time, strategy string) ([]*model.PerformanceSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+storage.PerformanceColumns+` FROM performance_metrics
		WHERE date>=$1 AND ($2='' OR strategy=$2)
		ORDER BY date DESC
	`, storage.DateKey(since), strategy)
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
	return r.db.QueryRowContext(ctx, `
		INSERT INTO trades(symbol, side, quantity, price, commission, status, strategy, order_id, pnl, ts_ms)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, storage.TradeArgs(trade)...).Scan(&trade.ID)
}

func (r *Repo) ListTrades(ctx context.Context, since time.Time, strategy string) ([]*model.Trade, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+storage.TradeColumns+` FROM trades
		WHERE ts_ms>=$1 AND ($2='' OR strategy=$2)
		ORDER BY ts_ms ASC, id ASC
	`, storage.ToMillis(since), strategy)
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
		VALUES($1, $2, $3, $4, $5, $6)
		ON CONFLICT(event_id) DO NOTHING
	`, storage.RiskEventArgs(ev)...)
	return err
}

func (r *Repo) ListRiskEvents(ctx context.Context, since time.Time, limit int) ([]*model.RiskEvent, error) {
	// LIMIT NULL 等价于不限制
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+storage.RiskEventColumns+` FROM risk_events
		WHERE ts_ms>=$1
		ORDER BY ts_ms DESC, id DESC
		LIMIT $2
	`, storage.ToMillis(since), lim)
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
		VALUES($1, $2, $3)
		ON CONFLICT(symbol) DO UPDATE SET
		price=EXCLUDED.price, ts_ms=EXCLUDED.ts_ms
	`, symbol, price, storage.ToMillis(ts))
	return err
}

var _ port.Repository = (*Repo)(nil)
