package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core)).WithFields(Fields{"component": "test"})

	logger.Info("hello", Fields{"track_id": "abc", "frames": 431})
	logger.Error(errors.New("boom"), "failed", Fields{"stage": "mel"})

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "test", first["component"])
	assert.Equal(t, "abc", first["track_id"])
	assert.EqualValues(t, 431, first["frames"])

	second := entries[1]
	assert.Equal(t, zapcore.ErrorLevel, second.Level)
	assert.Equal(t, "boom", second.ContextMap()["error"])
	assert.Equal(t, "mel", second.ContextMap()["stage"])
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "json info", level: "info", format: "json"},
		{name: "console debug", level: "DEBUG", format: "console"},
		{name: "bad level", level: "loud", format: "json", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
		})
	}
}

func TestDefault(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	SetDefault(FromZap(zap.New(core)))
	WithFields(Fields{"component": "x"}).Warn("careful")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "careful", logs.All()[0].Message)
}
