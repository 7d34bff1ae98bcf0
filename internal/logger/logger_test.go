package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestAppLogger_LevelMapping(t *testing.T) {
	cases := map[string]zapcore.Level{
		"info":    zapcore.InfoLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.DebugLevel,
		"verbose": zapcore.DebugLevel,
	}
	for in, want := range cases {
		l := NewAppLogger(&Config{LogLevel: in})
		assert.Equal(t, want, l.getLoggerLevel(), in)
	}
}

func TestAppLogger_InitAndWith(t *testing.T) {
	l := NewAppLogger(&Config{LogLevel: "info", DevMode: true, Encoder: "json"})
	l.InitLogger()
	require.NotNil(t, l.Logger())

	child := l.With(zap.String("threadId", "t1"))
	require.NotNil(t, child.Logger())
	assert.NotSame(t, l.Logger(), child.Logger())

	child.Infof("classified thread %s", "t1")
}

func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Errorf("ignored %d", 1)
	assert.NotNil(t, l.Logger())
}
