package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]struct {
		input string
		want  log.Level
	}{
		"debug":   {input: "debug", want: log.DebugLevel},
		"upper":   {input: "WARN", want: log.WarnLevel},
		"warning": {input: "warning", want: log.WarnLevel},
		"error":   {input: "error", want: log.ErrorLevel},
		"empty":   {input: "", want: log.InfoLevel},
		"unknown": {input: "loud", want: log.InfoLevel},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestConfigure_File(t *testing.T) {
	orig := Logger
	t.Cleanup(func() { Logger = orig })

	path := filepath.Join(t.TempDir(), "symlog.log")
	require.NoError(t, Configure("debug", path))
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())

	Debug("extracting", "version", "1.0.0")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "extracting")
	assert.Contains(t, string(data), "version=1.0.0")
}

func TestConfigure_EnvFallback(t *testing.T) {
	orig := Logger
	t.Cleanup(func() { Logger = orig })
	t.Setenv("SYMLOG_LOG_LEVEL", "error")

	require.NoError(t, Configure("", ""))
	assert.Equal(t, log.ErrorLevel, Logger.GetLevel())
}

func TestConfigure_BadFile(t *testing.T) {
	orig := Logger
	t.Cleanup(func() { Logger = orig })

	err := Configure("info", filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	assert.Error(t, err)
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))
	l := Component("test")
	assert.Same(t, l, OrDiscard(l))
	assert.NotNil(t, NewStyledLogger("symlog"))
}
