package app

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"phile/internal/app/bridge"
	"phile/internal/app/capability"
	"phile/internal/app/console"
	"phile/internal/app/launcher"
	"phile/internal/config"
	"phile/internal/config/logger"
)

// mockLifecycle implements fx.Lifecycle for testing
type mockLifecycle struct {
	onAppend func(fx.Hook)
}

func (m *mockLifecycle) Append(hook fx.Hook) {
	if m.onAppend != nil {
		m.onAppend(hook)
	}
}

// mockShutdowner implements fx.Shutdowner for testing
type mockShutdowner struct {
	called chan struct{}
}

func newMockShutdowner() *mockShutdowner {
	return &mockShutdowner{called: make(chan struct{}, 1)}
}

func (m *mockShutdowner) Shutdown(...fx.ShutdownOption) error {
	select {
	case m.called <- struct{}{}:
	default:
	}

	return nil
}

// newTestApp builds an app over a scripted stdin
func newTestApp(input string) *App {
	sup := launcher.NewSupervisor(capability.NewRegistry(), logger.NoOp())
	b := bridge.New(strings.NewReader(input), logger.NoOp())
	cons := console.New(sup, b.Lines(), io.Discard, config.DefaultConfig(), logger.NoOp())

	return NewApp(sup, cons, b, newMockShutdowner(), logger.NoOp())
}

func Test_NewApp(t *testing.T) {
	application := newTestApp("")

	assert.NotNil(t, application)
	assert.NotNil(t, application.done)
}

func Test_execute_ConsoleEOF(t *testing.T) {
	application := newTestApp("")

	require.NoError(t, application.execute())

	assert.False(t, application.sup.IsRunning(console.UnitName))
}

func Test_execute_ShutdownCommand(t *testing.T) {
	application := newTestApp("shutdown\n")

	require.NoError(t, application.execute())

	assert.False(t, application.sup.IsRunning(console.UnitName))
	assert.False(t, application.sup.IsRunning(launcher.ShutdownTarget))
}

func Test_Run_SignalsShutdowner(t *testing.T) {
	application := newTestApp("")
	shutdowner := application.shutdowner.(*mockShutdowner)

	go application.Run()

	select {
	case <-shutdowner.called:
	case <-time.After(5 * time.Second):
		t.Fatal("Run should signal the shutdowner")
	}

	select {
	case <-application.done:
	case <-time.After(time.Second):
		t.Fatal("Run should close done")
	}
}

func Test_Register(t *testing.T) {
	application := newTestApp("")

	var registered bool

	var capturedHook fx.Hook

	testLifecycle := &mockLifecycle{
		onAppend: func(hook fx.Hook) {
			registered = true
			capturedHook = hook
		},
	}

	Register(testLifecycle, application)

	assert.True(t, registered)
	assert.NotNil(t, capturedHook.OnStart)
	assert.NotNil(t, capturedHook.OnStop)
}

func Test_Register_OnStopWaitsForDone(t *testing.T) {
	application := newTestApp("")

	var capturedHook fx.Hook

	Register(&mockLifecycle{onAppend: func(hook fx.Hook) { capturedHook = hook }}, application)

	close(application.done)

	err := capturedHook.OnStop(context.Background())
	assert.NoError(t, err)
}

func Test_Register_OnStopHonorsContext(t *testing.T) {
	application := newTestApp("")

	var capturedHook fx.Hook

	Register(&mockLifecycle{onAppend: func(hook fx.Hook) { capturedHook = hook }}, application)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := capturedHook.OnStop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
