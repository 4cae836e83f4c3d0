package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"phile/internal/app"
	"phile/internal/config"
	"phile/internal/config/logger"
)

// main is the entry point for the application
func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCommand creates the root cobra command
func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "phile",
		Short:         "A local service supervisor with dependency-aware unit lifecycles",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.FileName, "Path to the config file")

	cmd.AddCommand(
		newInitCommand(),
		newVersionCommand(),
	)

	return cmd
}

// newInitCommand creates the init subcommand
func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate a " + config.FileName + " template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeTemplate(config.FileName)
		},
	}
}

// newVersionCommand creates the version subcommand
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("phile %s\n", config.Version)
		},
	}
}

// writeTemplate writes a default config file, refusing to overwrite
func writeTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	return config.DefaultConfig().Write(path)
}

// runApp loads configuration and runs the FX application
func runApp(configPath string) error {
	// .env entries become process environment before config is read
	_ = godotenv.Load(config.EnvFile)

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	createApp(cfg).Run()

	return nil
}

// createApp creates the FX application with the given config
func createApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.WithLogger(createFxLogger(cfg)),
		fx.Supply(cfg),
		app.Module,
	)
}

// createFxLogger returns an FX logger based on the config
func createFxLogger(cfg *config.Config) func() fxevent.Logger {
	return func() fxevent.Logger {
		if cfg.Logging.Level == logger.DebugLevel {
			return &fxevent.ConsoleLogger{W: os.Stdout}
		}

		return fxevent.NopLogger
	}
}
