package infrastructure

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fireEntry(t *testing.T, b *LogBuffer, msg string) {
	t.Helper()
	require.NoError(t, b.Fire(&log.Entry{
		Time:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Level:   log.InfoLevel,
		Message: msg,
	}))
}

func TestLogBuffer_Tail(t *testing.T) {
	t.Parallel()

	b := NewLogBuffer(10)
	assert.Empty(t, b.Tail(5))

	fireEntry(t, b, "first")
	fireEntry(t, b, "second")
	fireEntry(t, b, "third")

	tail := b.Tail(2)
	require.Len(t, tail, 2)
	assert.Contains(t, tail[0], "second")
	assert.Contains(t, tail[1], "third")

	// Asking for more lines than exist returns everything
	assert.Len(t, b.Tail(100), 3)
}

func TestLogBuffer_DropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	b := NewLogBuffer(3)
	fireEntry(t, b, "one")
	fireEntry(t, b, "two")
	fireEntry(t, b, "three")
	fireEntry(t, b, "four")

	tail := b.Tail(10)
	require.Len(t, tail, 3)
	assert.Contains(t, tail[0], "two")
	assert.Contains(t, tail[2], "four")
}

func TestLogBuffer_IncludesFields(t *testing.T) {
	t.Parallel()

	b := NewLogBuffer(10)
	require.NoError(t, b.Fire(&log.Entry{
		Time:    time.Now(),
		Level:   log.ErrorLevel,
		Message: "boom",
		Data:    log.Fields{"guild": 123},
	}))

	tail := b.Tail(1)
	require.Len(t, tail, 1)
	assert.Contains(t, tail[0], "[error]")
	assert.Contains(t, tail[0], "boom")
	assert.Contains(t, tail[0], "guild=123")
}
