package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBuild_JSONLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l, cleanup := Build(Options{Level: "warn", JSON: true, Out: zapcore.AddSync(&buf)})
	defer cleanup()

	l.Info("hidden")
	l.Warn("shown", zap.String("k", "v"))
	cleanup()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "v", entry["k"])
	assert.Contains(t, entry, "ts")
}

func TestBuild_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l, cleanup := Build(Options{Level: "loud", JSON: true, Out: zapcore.AddSync(&buf)})
	l.Debug("no")
	l.Info("yes")
	cleanup()
	assert.NotContains(t, buf.String(), `"no"`)
	assert.Contains(t, buf.String(), `"yes"`)
}

func TestToStdLogger(t *testing.T) {
	var buf bytes.Buffer
	l, cleanup := Build(Options{Level: "debug", JSON: true, Out: zapcore.AddSync(&buf)})
	std := ToStdLogger(l, zapcore.WarnLevel)
	std.Println("slow sql")
	cleanup()
	assert.Contains(t, buf.String(), "slow sql")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
