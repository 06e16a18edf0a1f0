package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tradeguard/internal/application/port"
	"tradeguard/internal/application/service"
)

// ErrNoFeeds 没有可用的行情源
var ErrNoFeeds = errors.New("no feeds")

type ServiceDeps struct {
	Feeds        []port.PriceFeed
	Symbols      []string
	SummaryEvery time.Duration
	ExitCooldown time.Duration

	Risk        *service.RiskService
	Prices      *service.PriceService
	Performance *service.PerformanceService // 可选，每次概览前刷新当日快照
	Cash        float64

	Sink port.Sink
	Now  func() time.Time
}

type Service struct {
	deps   ServiceDeps
	st     *State
	fmt    *Formatter
	alerts *exitDeduplicator
}

func NewService(deps ServiceDeps) *Service {
	if deps.SummaryEvery <= 0 {
		deps.SummaryEvery = 5 * time.Minute
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		deps:   deps,
		st:     NewState(deps.Symbols),
		fmt:    NewFormatter(deps.Risk.Manager().Stops().TrailingStop),
		alerts: newExitDeduplicator(deps.ExitCooldown),
	}
}

func (s *Service) Run(ctx context.Context) error {
	if len(s.deps.Feeds) == 0 {
		return ErrNoFeeds
	}

	if n, err := s.deps.Risk.RestoreTracking(ctx); err != nil {
		log.Error().Err(err).Msg("restore trailing stops failed")
	} else if n > 0 {
		log.Info().Int("positions", n).Msg("trailing stops restored")
	}

	// 任一行情源订阅失败时，已启动的转发协程随 cancel 退出
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	merged := make(chan port.Tick, 1024)

	// start feeds
	for _, feed := range s.deps.Feeds {
		ch, err := feed.Subscribe(ctx, s.st.Symbols())
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", feed.Name(), err)
		}
		go func(in <-chan port.Tick) {
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-in:
					if !ok {
						return
					}
					select {
					case merged <- t:
					case <-ctx.Done():
						return
					}
				}
			}
		}(ch)

		log.Info().Str("feed", feed.Name()).Msg("feed started")
	}

	summaryTicker := time.NewTicker(s.deps.SummaryEvery)
	defer summaryTicker.Stop()

	// initial live line
	_ = s.deps.Sink.WriteLive(s.fmt.Render(s.st, RenderLive))

	for {
		select {
		case <-ctx.Done():
			if err := s.deps.Prices.Flush(context.WithoutCancel(ctx)); err != nil {
				log.Error().Err(err).Msg("flush open bars failed")
			}
			_ = s.deps.Sink.NewLine()
			return ctx.Err()

		case <-summaryTicker.C:
			s.writeSummary(ctx)

		case t := <-merged:
			s.handleTick(ctx, t)
		}
	}
}

func (s *Service) handleTick(ctx context.Context, t port.Tick) {
	if s.st.Apply(t) {
		_ = s.deps.Sink.WriteLive(s.fmt.Render(s.st, RenderLive))
	}
	if t.Price <= 0 {
		return
	}
	if t.Ts.IsZero() {
		t.Ts = s.deps.Now()
	}

	if err := s.deps.Prices.RecordTick(ctx, t); err != nil {
		log.Warn().Err(err).Str("symbol", t.Symbol).Msg("record tick failed")
	}

	sig, err := s.deps.Risk.OnPrice(ctx, t.Symbol, t.Price, t.Ts)
	if err != nil {
		log.Error().Err(err).Str("symbol", t.Symbol).Msg("exit check failed")
		return
	}
	if !sig.Exit {
		s.alerts.Reset(t.Symbol)
		return
	}
	now := s.deps.Now()
	if s.alerts.ShouldEmit(t.Symbol, sig.Kind, now) {
		_ = s.deps.Sink.WriteAlert(now, s.fmt.RenderExit(t.Symbol, t.Price, sig))
	}
}

func (s *Service) writeSummary(ctx context.Context) {
	if s.deps.Performance != nil {
		if _, err := s.deps.Performance.UpdateDaily(ctx, s.deps.Cash); err != nil {
			log.Error().Err(err).Msg("update performance failed")
		}
	}
	sum, err := s.deps.Risk.Summary(ctx)
	if err != nil {
		log.Error().Err(err).Msg("risk summary failed")
		return
	}
	_ = s.deps.Sink.WriteSnapshot(s.deps.Now(), s.fmt.RenderSummary(sum))
}
