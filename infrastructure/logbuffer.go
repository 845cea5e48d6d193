package infrastructure

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// LogBuffer is a logrus hook keeping the most recent log lines in memory so
// the operator `log` command can dump a diagnostic tail on demand.
type LogBuffer struct {
	mu      sync.Mutex
	entries []string
	max     int
}

// NewLogBuffer creates a log buffer holding up to max lines.
func NewLogBuffer(max int) *LogBuffer {
	return &LogBuffer{max: max}
}

// Levels implements the logrus Hook interface.
func (b *LogBuffer) Levels() []log.Level {
	return log.AllLevels
}

// Fire implements the logrus Hook interface.
func (b *LogBuffer) Fire(entry *log.Entry) error {
	line := fmt.Sprintf("%s [%s] %s", entry.Time.Format("2006-01-02 15:04:05"), entry.Level, entry.Message)
	for k, v := range entry.Data {
		line += fmt.Sprintf(" %s=%v", k, v)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, line)
	if len(b.entries) > b.max {
		b.entries = b.entries[len(b.entries)-b.max:]
	}
	return nil
}

// Tail returns the most recent n log lines, oldest first.
func (b *LogBuffer) Tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.entries) {
		n = len(b.entries)
	}
	tail := make([]string, n)
	copy(tail, b.entries[len(b.entries)-n:])
	return tail
}
