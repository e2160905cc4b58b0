package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLazyLogger_FollowsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	l := Logger("registry")

	var buf bytes.Buffer
	SetDefault(New(&buf, &slog.HandlerOptions{Level: LevelDebug}))
	l.Debug("sweep", "expired", 2)

	assert.Contains(t, buf.String(), "component=registry")
	assert.Contains(t, buf.String(), "expired=2")
}
