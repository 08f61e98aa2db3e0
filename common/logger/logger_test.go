package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelFiltering(t *testing.T) {
	core, logs := observer.New(level)
	UseCore(core)
	t.Cleanup(func() { SetLevel(LevelInfo); UseNop() })

	SetLevel(LevelWarn)
	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warnf("warn %d", 3)
	Errorf("error %d", 4)

	msgs := make([]string, 0, logs.Len())
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"warn 3", "error 4"}, msgs)
}

func TestContextLoggerAttachesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	UseCore(core)
	t.Cleanup(UseNop)

	WithContext(map[string]interface{}{"source": "cardif"}).Infof("analyzed %s", "question")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "analyzed question", entry.Message)
	assert.Equal(t, "cardif", entry.ContextMap()["source"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{" WARN ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}
