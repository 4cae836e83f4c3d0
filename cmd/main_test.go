package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxevent"

	"phile/internal/config"
	"phile/internal/config/logger"
)

func configWithLevel(level string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = level

	return cfg
}

func Test_CreateApp(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{name: "Creates app with info level logging", level: logger.InfoLevel},
		{name: "Creates app with debug level logging", level: logger.DebugLevel},
		{name: "Creates app with error level logging", level: logger.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := createApp(configWithLevel(tt.level))

			assert.NotNil(t, app)
			assert.NoError(t, app.Err())
		})
	}
}

func Test_CreateFxLogger(t *testing.T) {
	tests := []struct {
		name           string
		level          string
		expectedType   interface{}
		expectedLogger interface{}
	}{
		{name: "Debug level returns console logger", level: logger.DebugLevel, expectedType: &fxevent.ConsoleLogger{}},
		{name: "Info level returns nop logger", level: logger.InfoLevel, expectedLogger: fxevent.NopLogger},
		{name: "Warn level returns nop logger", level: logger.WarnLevel, expectedLogger: fxevent.NopLogger},
		{name: "Error level returns nop logger", level: logger.ErrorLevel, expectedLogger: fxevent.NopLogger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loggerFunc := createFxLogger(configWithLevel(tt.level))
			assert.NotNil(t, loggerFunc)

			result := loggerFunc()
			assert.NotNil(t, result)

			if tt.expectedType != nil {
				assert.IsType(t, tt.expectedType, result)
			}

			if tt.expectedLogger != nil {
				assert.Equal(t, tt.expectedLogger, result)
			}
		})
	}
}

func Test_WriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)

	require.NoError(t, writeTemplate(path))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	assert.Error(t, writeTemplate(path), "existing file must not be overwritten")
}

func Test_RootCommand_Version(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"version"})

	assert.NoError(t, cmd.Execute())
}

func Test_RootCommand_UnknownSubcommand(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"bogus"})

	assert.Error(t, cmd.Execute())
}
