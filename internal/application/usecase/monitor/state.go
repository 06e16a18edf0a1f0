package monitor

import (
	"strconv"
	"strings"
	"sync"

	"tradeguard/internal/application/port"
)

type Dir int

const (
	DirSame Dir = 0
	DirUp   Dir = +1
	DirDown Dir = -1
)

type pxState struct {
	str   string
	num   float64
	has   bool
	dir   Dir
	seen  bool
	parse bool
	src   string
}

type State struct {
	mu sync.Mutex

	order []string
	syms  map[string]*pxState
}

func NewState(symbols []string) *State {
	order := make([]string, 0, len(symbols))
	syms := make(map[string]*pxState, len(symbols))
	for _, s := range symbols {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, dup := syms[u]; dup {
			continue
		}
		order = append(order, u)
		syms[u] = &pxState{}
	}
	return &State{order: order, syms: syms}
}

func (s *State) Symbols() []string {
	return s.order
}

// Apply 应用一个价格更新，返回是否需要重画（价格字符串发生了变化）
// 未订阅的 symbol 被忽略
func (s *State) Apply(t port.Tick) bool {
	sym := strings.ToUpper(strings.TrimSpace(t.Symbol))
	price := strings.TrimSpace(t.PriceStr)
	if price == "" && t.Price > 0 {
		price = strconv.FormatFloat(t.Price, 'f', -1, 64)
	}
	if sym == "" || price == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ps := s.syms[sym]
	if ps == nil {
		return false
	}
	ps.src = t.Source

	if ps.str == price {
		ps.seen = true
		return false
	}
	ps.str = price
	ps.seen = true

	n, err := strconv.ParseFloat(price, 64)
	if err != nil {
		ps.parse = false
		ps.dir = DirSame
		return true
	}

	ps.parse = true
	if !ps.has {
		ps.has = true
		ps.num = n
		ps.dir = DirSame
		return true
	}

	switch prev := ps.num; {
	case n > prev:
		ps.dir = DirUp
	case n < prev:
		ps.dir = DirDown
	default:
		ps.dir = DirSame
	}
	ps.num = n
	return true
}

// Last 最近一次可解析的价格
func (s *State) Last(symbol string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps := s.syms[strings.ToUpper(symbol)]
	if ps == nil || !ps.has {
		return 0, false
	}
	return ps.num, true
}

func (s *State) Snapshot() map[string]pxState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]pxState, len(s.syms))
	for k, v := range s.syms {
		out[k] = *v
	}
	return out
}
