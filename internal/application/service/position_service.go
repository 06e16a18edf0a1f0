package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"tradeguard/internal/application/port"
	"tradeguard/internal/domain/model"
)

var (
	// ErrInvalidFill 成交数量或价格非法
	ErrInvalidFill = errors.New("invalid fill")
	// ErrOversell 卖出数量超过持仓
	ErrOversell = errors.New("sell quantity exceeds position")
)

const qtyEpsilon = 1e-9

// FillResult 成交记账结果
type FillResult struct {
	Position *model.Position `json:"position"`
	Realized float64         `json:"realized"`
	Opened   bool            `json:"opened"` // 持仓从 0 变为正
	Closed   bool            `json:"closed"` // 持仓归零
}

// PositionService 持仓记账（平均成本法，只做多）
type PositionService struct {
	repo port.Repository
	now  func() time.Time
}

func NewPositionService(repo port.Repository) *PositionService {
	return &PositionService{repo: repo, now: time.Now}
}

// ApplyFill 按成交更新持仓并写入成交记录
// 卖出成交的 PnL 会回写到 trade 上
func (s *PositionService) ApplyFill(ctx context.Context, trade *model.Trade) (*FillResult, error) {
	if trade.Quantity <= 0 || trade.Price <= 0 {
		return nil, fmt.Errorf("%w: %s qty=%v price=%v", ErrInvalidFill, trade.Symbol, trade.Quantity, trade.Price)
	}
	if trade.Status == "" {
		trade.Status = model.TradeStatusFilled
	}
	if trade.Timestamp.IsZero() {
		trade.Timestamp = s.now()
	}

	pos, err := s.repo.GetPosition(ctx, trade.Symbol)
	if errors.Is(err, port.ErrNotFound) {
		pos = &model.Position{Symbol: trade.Symbol}
	} else if err != nil {
		return nil, fmt.Errorf("load position %s: %w", trade.Symbol, err)
	}

	res := &FillResult{Position: pos}
	wasOpen := pos.IsOpen()

	switch trade.Side {
	case model.SideLong:
		qty := pos.Quantity + trade.Quantity
		pos.AvgCost = (pos.Quantity*pos.AvgCost + trade.Quantity*trade.Price) / qty
		pos.Quantity = qty
		pos.RealizedPnL -= trade.Commission
	case model.SideShort:
		if trade.Quantity > pos.Quantity+qtyEpsilon {
			return nil, fmt.Errorf("%w: %s sell %v, held %v", ErrOversell, trade.Symbol, trade.Quantity, pos.Quantity)
		}
		realized := (trade.Price-pos.AvgCost)*trade.Quantity - trade.Commission
		pos.Quantity -= trade.Quantity
		if math.Abs(pos.Quantity) < qtyEpsilon {
			pos.Quantity = 0
		}
		pos.RealizedPnL += realized
		res.Realized = realized
		trade.PnL = &realized
	default:
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidSide, int(trade.Side))
	}

	pos.CurrentPrice = trade.Price
	pos.UnrealizedPnL = (pos.CurrentPrice - pos.AvgCost) * pos.Quantity
	pos.UpdatedAt = trade.Timestamp

	if err := s.repo.UpsertPosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("save position %s: %w", pos.Symbol, err)
	}
	if err := s.repo.InsertTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("save trade %s: %w", trade.Symbol, err)
	}

	res.Opened = !wasOpen && pos.IsOpen()
	res.Closed = wasOpen && !pos.IsOpen()

	log.Info().
		Str("symbol", trade.Symbol).
		Str("side", trade.Side.String()).
		Float64("qty", trade.Quantity).
		Float64("price", trade.Price).
		Float64("position", pos.Quantity).
		Float64("avg_cost", pos.AvgCost).
		Float64("realized", res.Realized).
		Msg("fill applied")
	return res, nil
}

// MarkPrice 刷新持仓最新价和浮动盈亏，未持仓时返回 nil
func (s *PositionService) MarkPrice(ctx context.Context, symbol string, price float64, ts time.Time) (*model.Position, error) {
	pos, err := s.repo.GetPosition(ctx, symbol)
	if errors.Is(err, port.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load position %s: %w", symbol, err)
	}
	if !pos.IsOpen() || price <= 0 {
		return nil, nil
	}

	pos.CurrentPrice = price
	pos.UnrealizedPnL = (price - pos.AvgCost) * pos.Quantity
	pos.UpdatedAt = ts
	if err := s.repo.UpsertPosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("save position %s: %w", symbol, err)
	}
	return pos, nil
}

func (s *PositionService) GetPosition(ctx context.Context, symbol string) (*model.Position, error) {
	return s.repo.GetPosition(ctx, symbol)
}

func (s *PositionService) ListOpenPositions(ctx context.Context) ([]*model.Position, error) {
	return s.repo.OpenPositions(ctx)
}

func (s *PositionService) ListAllPositions(ctx context.Context) ([]*model.Position, error) {
	return s.repo.ListPositions(ctx)
}
