package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"phile/internal/config"
)

func Test_NewLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{name: "Default", level: "", expected: zerolog.InfoLevel},
		{name: "Trace", level: TraceLevel, expected: zerolog.TraceLevel},
		{name: "Debug", level: DebugLevel, expected: zerolog.DebugLevel},
		{name: "Info", level: InfoLevel, expected: zerolog.InfoLevel},
		{name: "Warn", level: WarnLevel, expected: zerolog.WarnLevel},
		{name: "Error", level: ErrorLevel, expected: zerolog.ErrorLevel},
		{name: "Unknown falls back to info", level: "whatever", expected: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, getLogLevel(tt.level))
		})
	}
}

func Test_NewLoggerWithOutput_WritesToCustomWriter(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = DebugLevel

	var buf bytes.Buffer

	log := NewLoggerWithOutput(cfg, &buf)
	log.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), config.Version)
}

func Test_Logger_WithComponent(t *testing.T) {
	cfg := config.DefaultConfig()

	var buf bytes.Buffer

	log := NewLoggerWithOutput(cfg, &buf).WithComponent("LAUNCHER")
	log.Info().Msg("scoped")

	assert.Contains(t, buf.String(), "LAUNCHER")
}

func Test_NoOp_DiscardsOutput(t *testing.T) {
	log := NoOp()

	assert.NotNil(t, log)
	log.Info().Msg("dropped")
	log.Error().Msg("dropped")
}
