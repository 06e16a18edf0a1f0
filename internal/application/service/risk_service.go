package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tradeguard/internal/application/port"
	"tradeguard/internal/domain/model"
	dsvc "tradeguard/internal/domain/service"
)

// ErrInvalidPrice 价格或账户价值非法
var ErrInvalidPrice = errors.New("price and account value must be positive")

// DefaultStatsWindow Kelly 统计回看的成交区间
const DefaultStatsWindow = 90 * 24 * time.Hour

// EntryRequest 开仓请求，Quantity 为 0 时按仓位计算结果下单
type EntryRequest struct {
	Symbol       string
	Side         model.Side
	Price        float64
	AccountValue float64
	Quantity     float64
	Volatility   float64
	// Stats 为 nil 时从成交记录计算
	Stats *model.TradeStats
}

// EntryVerdict 开仓结论
type EntryVerdict struct {
	model.Decision
	Quantity float64         `json:"quantity"`
	Size     dsvc.SizeResult `json:"size"`
}

type RiskServiceDeps struct {
	Manager   *dsvc.RiskManager
	Positions *PositionService
	Repo      port.Repository
	Publisher port.EventPublisher
	Metrics   port.RiskMetrics

	// MaxHold 持仓时间上限，0 表示不启用时间止损
	MaxHold     time.Duration
	StatsWindow time.Duration
	Now         func() time.Time
}

// RiskService 风控门面：计算仓位 -> 闸门检查 -> 发布事件 -> 上报指标
type RiskService struct {
	deps RiskServiceDeps
}

func NewRiskService(deps RiskServiceDeps) *RiskService {
	if deps.Metrics == nil {
		deps.Metrics = port.NoopMetrics{}
	}
	if deps.Publisher == nil {
		deps.Publisher = deps.Repo
	}
	if deps.StatsWindow <= 0 {
		deps.StatsWindow = DefaultStatsWindow
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &RiskService{deps: deps}
}

func (s *RiskService) Manager() *dsvc.RiskManager { return s.deps.Manager }

// EvaluateEntry 计算建议仓位并做开仓检查
func (s *RiskService) EvaluateEntry(ctx context.Context, req EntryRequest) (*EntryVerdict, error) {
	if req.Side != model.SideLong && req.Side != model.SideShort {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidSide, int(req.Side))
	}
	if req.Price <= 0 || req.AccountValue <= 0 {
		return nil, fmt.Errorf("%w: price=%v account=%v", ErrInvalidPrice, req.Price, req.AccountValue)
	}

	stats := req.Stats
	if stats == nil {
		st, err := s.TradeStats(ctx)
		if err != nil {
			return nil, err
		}
		stats = st
	}

	v := &EntryVerdict{
		Size: s.deps.Manager.CalculatePositionSize(req.Price, req.AccountValue, req.Volatility, stats),
	}
	v.Quantity = req.Quantity
	if v.Quantity <= 0 {
		v.Quantity = float64(v.Size.Shares)
	}

	d, err := s.deps.Manager.CanOpenPosition(ctx, req.Symbol, req.Side, v.Quantity, req.Price, req.AccountValue)
	if err != nil {
		return nil, fmt.Errorf("risk check %s: %w", req.Symbol, err)
	}
	v.Decision = d

	kind := model.EventEntryApproved
	if !d.Allowed {
		kind = model.EventEntryRejected
	}
	s.publish(ctx, kind, req.Symbol, d.Reason, map[string]any{
		"side":          req.Side,
		"price":         req.Price,
		"quantity":      v.Quantity,
		"account_value": req.AccountValue,
		"method":        v.Size.Method,
		"floored":       v.Size.Floored,
	})
	s.deps.Metrics.RecordDecision(req.Symbol, d.Allowed, d.Reason)
	return v, nil
}

// RecordFill 记账并维护止损跟踪：开仓登记入场，平仓清除
func (s *RiskService) RecordFill(ctx context.Context, trade *model.Trade) (*FillResult, error) {
	res, err := s.deps.Positions.ApplyFill(ctx, trade)
	if err != nil {
		return nil, err
	}

	switch {
	case res.Opened:
		s.deps.Manager.RegisterEntry(trade.Symbol, trade.Price)
		s.publish(ctx, model.EventPositionOpen, trade.Symbol, "", map[string]any{
			"quantity": res.Position.Quantity,
			"price":    trade.Price,
		})
	case res.Closed:
		s.deps.Manager.ClearPosition(trade.Symbol)
		s.publish(ctx, model.EventPositionClose, trade.Symbol, "", map[string]any{
			"price":    trade.Price,
			"realized": res.Realized,
		})
	}
	return res, nil
}

// OnPrice 新价格：刷新持仓、上移跟踪止损，并按
// 止损/止盈 -> 跟踪止损 -> 时间止损 的顺序判断是否平仓
func (s *RiskService) OnPrice(ctx context.Context, symbol string, price float64, ts time.Time) (model.ExitSignal, error) {
	pos, err := s.deps.Positions.MarkPrice(ctx, symbol, price, ts)
	if err != nil {
		return model.Hold(), err
	}
	if pos == nil {
		return model.Hold(), nil
	}

	rm := s.deps.Manager
	rm.UpdateTrailingStops(symbol, price)

	sig := rm.ShouldExitPosition(pos.AvgCost, price, pos.Quantity, model.SideLong)
	if !sig.Exit {
		sig = rm.CheckTrailingStop(symbol, price)
	}
	if !sig.Exit && s.deps.MaxHold > 0 {
		sig = rm.CheckTimeStop(symbol, s.deps.MaxHold)
	}
	if !sig.Exit {
		return sig, nil
	}

	s.publish(ctx, model.EventExitSignal, symbol, sig.Reason, map[string]any{
		"kind":     sig.Kind,
		"price":    price,
		"avg_cost": pos.AvgCost,
		"quantity": pos.Quantity,
	})
	s.deps.Metrics.RecordExit(symbol, sig.Kind)
	return sig, nil
}

// Summary 风控概览，同时刷新指标
func (s *RiskService) Summary(ctx context.Context) (*model.RiskSummary, error) {
	sum, err := s.deps.Manager.GetRiskSummary(ctx)
	if err != nil {
		return nil, err
	}
	s.deps.Metrics.RecordSummary(sum)
	return sum, nil
}

// RestoreTracking 启动时为已有持仓恢复跟踪止损（以平均成本为入场价）
func (s *RiskService) RestoreTracking(ctx context.Context) (int, error) {
	positions, err := s.deps.Positions.ListOpenPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open positions: %w", err)
	}
	for _, p := range positions {
		s.deps.Manager.RegisterEntry(p.Symbol, p.AvgCost)
		if p.CurrentPrice > 0 {
			s.deps.Manager.UpdateTrailingStops(p.Symbol, p.CurrentPrice)
		}
	}
	return len(positions), nil
}

// TradeStats 最近成交的胜率与平均盈亏
func (s *RiskService) TradeStats(ctx context.Context) (*model.TradeStats, error) {
	since := s.deps.Now().Add(-s.deps.StatsWindow)
	trades, err := s.deps.Repo.ListTrades(ctx, since, s.deps.Manager.Limits().Strategy)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	st := dsvc.ComputeTradeStats(trades)
	return &st, nil
}

func (s *RiskService) publish(ctx context.Context, kind model.EventKind, symbol, reason string, payload map[string]any) {
	b, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("marshal event payload failed")
		b = nil
	}
	ev := &model.RiskEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Symbol:    symbol,
		Reason:    reason,
		Payload:   string(b),
		Timestamp: s.deps.Now(),
	}
	if err := s.deps.Publisher.PublishRiskEvent(ctx, ev); err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Str("symbol", symbol).Msg("publish risk event failed")
	}
}
