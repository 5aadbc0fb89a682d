package log

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg := ParseConfig("core/dispatcher=debug, protocol=warn ,error", "json")

	assert.Equal(t, slog.LevelError, cfg.DefaultLevel)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, slog.LevelDebug, cfg.LevelFor("core/dispatcher"))
	assert.Equal(t, slog.LevelWarn, cfg.LevelFor("protocol/mcp"))
	assert.Equal(t, slog.LevelError, cfg.LevelFor("core/transport"))
}

func TestParseConfig_IgnoresGarbage(t *testing.T) {
	cfg := ParseConfig("nonsense,core=loud", "")

	assert.Equal(t, slog.LevelInfo, cfg.DefaultLevel)
	assert.Empty(t, cfg.ComponentLevels)
	assert.Equal(t, FormatText, cfg.Format)
}

func TestLazyLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, slog.LevelWarn, FormatText)
	t.Cleanup(func() { Setup(os.Stderr, slog.LevelInfo, FormatText) })

	l := Logger("test/component")
	l.Info("hidden")
	l.Warn("visible", "key", "value")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "component=test/component")
	assert.Contains(t, out, "key=value")
	assert.False(t, l.Enabled(slog.LevelDebug))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", TruncateID("abc", 8))
	assert.Equal(t, "abcdefgh", TruncateID("abcdefghij", 8))
}
