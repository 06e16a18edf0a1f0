package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSide 无法识别的方向
var ErrInvalidSide = errors.New("invalid side")

// Side 持仓方向
type Side int

const (
	SideLong Side = iota + 1
	SideShort
)

// ParseSide accepts "buy"/"long" and "sell"/"short", case-insensitive.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long":
		return SideLong, nil
	case "sell", "short":
		return SideShort, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSide, s)
}

func (s Side) String() string {
	switch s {
	case SideLong:
		return "long"
	case SideShort:
		return "short"
	}
	return "unknown"
}

func (s Side) MarshalText() ([]byte, error) {
	if s != SideLong && s != SideShort {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, int(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
