// Package cli wires the leash commands.
package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/leash-sh/leash/internal/config"
	"github.com/leash-sh/leash/internal/proctree"
)

// NewRootCmd constructs the leash command tree.
func NewRootCmd() *cobra.Command {
	var configPath string
	var logLevel string

	app := &appContext{}

	root := &cobra.Command{
		Use:   "leash",
		Short: "Run a command on a leash: deadline, captured output, tree reaping on timeout",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			level, err := logrus.ParseLevel(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			logger := logrus.New()
			logger.SetLevel(level)
			logger.SetOutput(cmd.ErrOrStderr())
			app.cfg = cfg
			app.log = logrus.NewEntry(logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to leash config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level, overrides the config file")

	root.AddCommand(newRunCmd(app))
	root.AddCommand(newReapCmd(app))
	root.AddCommand(newTreeCmd(app))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// Execute runs the CLI entrypoint. SIGINT and SIGTERM cancel the active run.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		var codeErr *exitCodeError
		if errors.As(err, &codeErr) {
			if codeErr.message != "" {
				fmt.Fprintln(os.Stderr, codeErr.message)
			}
			os.Exit(codeErr.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type appContext struct {
	cfg *config.Config
	log *logrus.Entry
}

func (a *appContext) reaper(dir proctree.Directory) *proctree.Reaper {
	return proctree.NewReaper(dir, a.cfg.ReapMaxDepth, a.log)
}

// exitCodeError carries a process exit status through cobra to Execute.
type exitCodeError struct {
	code    int
	message string
}

func (e *exitCodeError) Error() string {
	if e.message != "" {
		return e.message
	}
	return fmt.Sprintf("exit status %d", e.code)
}
