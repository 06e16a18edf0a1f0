package console

import (
	"fmt"
	"io"
	"os"
	"time"

	"tradeguard/internal/application/port"
)

const tsLayout = "2006-01-02 15:04:05"

type Sink struct {
	out io.Writer
}

func NewSink() port.Sink { return &Sink{out: os.Stdout} }

// NewSinkTo writes to w instead of stdout.
func NewSinkTo(w io.Writer) port.Sink { return &Sink{out: w} }

func (s *Sink) WriteLive(line string) error {
	_, err := fmt.Fprint(s.out, line) // no newline
	return err
}

// 概览行：前后各留一个空行，不立刻重画 live，等下一次价格变化刷新
func (s *Sink) WriteSnapshot(ts time.Time, line string) error {
	_, err := fmt.Fprintf(s.out, "\n%s %s\n\n", ts.Format(tsLayout), line)
	return err
}

// WriteAlert 平仓提示单独成行
func (s *Sink) WriteAlert(ts time.Time, line string) error {
	_, err := fmt.Fprintf(s.out, "\n%s %s\n", ts.Format(tsLayout), line)
	return err
}

func (s *Sink) NewLine() error {
	_, err := fmt.Fprint(s.out, "\n")
	return err
}
