package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"

	"phile/internal/app/bridge"
	"phile/internal/app/console"
	"phile/internal/app/launcher"
	"phile/internal/config"
	"phile/internal/config/logger"
)

// App wires the supervisor, bridge and console together and owns the
// run-until-shutdown loop.
type App struct {
	sup        *launcher.Supervisor
	console    *console.Console
	bridge     *bridge.Bridge
	shutdowner fx.Shutdowner
	log        logger.Logger
	done       chan struct{}
}

// NewApp creates a new application instance with its dependencies
func NewApp(sup *launcher.Supervisor, cons *console.Console, b *bridge.Bridge, shutdowner fx.Shutdowner, log logger.Logger) *App {
	return &App{
		sup:        sup,
		console:    cons,
		bridge:     b,
		shutdowner: shutdowner,
		log:        log.WithComponent("APP"),
		done:       make(chan struct{}),
	}
}

// Run executes the application and signals fx to exit when it is done
func (a *App) Run() {
	exitCode := 0

	if err := a.execute(); err != nil {
		a.log.Error().Err(err).Msg("Application error")

		exitCode = 1
	}

	close(a.done)

	_ = a.shutdowner.Shutdown(fx.ExitCode(exitCode))
}

// execute serves until a shutdown condition, then tears down
func (a *App) execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.serve(ctx); err != nil {
		return err
	}

	return a.teardown()
}

// serve starts the console unit and blocks until the shutdown target
// starts or the console unit stops. A signal on ctx requests shutdown
// by starting the shutdown target, so teardown ordering stays uniform.
func (a *App) serve(ctx context.Context) error {
	view := a.sup.Events().Subscribe()

	if err := a.console.Register(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, config.DefaultTimeout)
	defer cancel()

	if err := a.sup.Start(console.UnitName).Wait(startCtx); err != nil {
		return err
	}

	a.log.Info().Msgf("phile %s ready", config.Version)

	served := make(chan struct{})
	defer close(served)

	go func() {
		select {
		case <-ctx.Done():
			a.sup.Start(launcher.ShutdownTarget)
		case <-served:
		}
	}()

	for {
		event, err := view.Next(context.Background())
		if err != nil {
			return err
		}

		if event.Type == launcher.EventUnitStarted && event.Name == launcher.ShutdownTarget {
			a.log.Info().Msg("Shutdown target started")
			return nil
		}

		if event.Type == launcher.EventUnitStopped && event.Name == console.UnitName {
			a.log.Info().Msg("Console ended, shutting down")
			return nil
		}
	}
}

// teardown stops every running unit within the shutdown budget
func (a *App) teardown() error {
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	err := a.sup.StopAll(ctx)

	a.bridge.Close()
	a.sup.Capabilities().Close()

	return err
}

// Register registers the application's lifecycle hooks with fx
func Register(lifecycle fx.Lifecycle, app *App) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go app.Run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-app.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
