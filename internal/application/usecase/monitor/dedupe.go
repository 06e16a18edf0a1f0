package monitor

import (
	"sync"
	"time"

	"tradeguard/internal/domain/model"
)

type emitted struct {
	kind model.ExitKind
	at   time.Time
}

// exitDeduplicator 同一 symbol 的同类平仓信号只提示一次，
// 条件解除（Reset）或超过冷却期后才会再次提示
type exitDeduplicator struct {
	mu       sync.Mutex
	cooldown time.Duration // 0 表示条件持续期间永不重复
	last     map[string]emitted
}

func newExitDeduplicator(cooldown time.Duration) *exitDeduplicator {
	return &exitDeduplicator{
		cooldown: cooldown,
		last:     make(map[string]emitted),
	}
}

// ShouldEmit 检查是否需要提示，需要时记录本次提示
func (d *exitDeduplicator) ShouldEmit(symbol string, kind model.ExitKind, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok := d.last[symbol]
	if ok && prev.kind == kind {
		if d.cooldown <= 0 || now.Sub(prev.at) < d.cooldown {
			return false
		}
	}
	d.last[symbol] = emitted{kind: kind, at: now}
	return true
}

// Reset 信号解除
func (d *exitDeduplicator) Reset(symbol string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.last, symbol)
}
