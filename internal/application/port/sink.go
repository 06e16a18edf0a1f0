package port

import "time"

type Sink interface {
	// Live line: overwrite last line (no newline)
	WriteLive(line string) error
	// Snapshot line: periodic risk summary, appended with timestamp
	WriteSnapshot(ts time.Time, line string) error
	// Alert line: exit signals and rejected entries, appended with timestamp
	WriteAlert(ts time.Time, line string) error
	// Normal newline (for logs)
	NewLine() error
}
