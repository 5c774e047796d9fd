package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leash-sh/leash/internal/cliutil"
	"github.com/leash-sh/leash/internal/metrics"
	"github.com/leash-sh/leash/internal/proctree"
	"github.com/leash-sh/leash/internal/runner"
)

func newRunCmd(app *appContext) *cobra.Command {
	var workdir string
	var timeout time.Duration
	var jsonOut bool
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Execute a command under a deadline",
		Long: `Execute a command, capture its output, and enforce a wall-clock deadline.
On timeout the entire descendant process tree is reaped before the failure is
reported. Captured output is printed after the command concludes; the leash
exit status mirrors the command's own.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			if timeout == 0 {
				timeout = cfg.Timeout.Duration
			}
			addr := metricsAddr
			if addr == "" {
				addr = cfg.MetricsAddr
			}
			if addr != "" {
				shutdown, err := serveMetrics(addr)
				if err != nil {
					return fmt.Errorf("metrics listener: %w", err)
				}
				defer shutdown()
			}

			dir := proctree.System()
			r := runner.New(dir, app.reaper(dir), cfg.KillGrace.Duration, app.log)

			line := strings.Join(args, " ")
			if cfg.Redact {
				line = cliutil.RedactCommandLine(line)
			}
			app.log.WithField("command", line).Debug("starting run")

			res, err := r.Run(cmd.Context(), runner.Request{
				Dir:     workdir,
				Path:    args[0],
				Args:    args[1:],
				Timeout: timeout,
			})

			if jsonOut {
				rec := cliutil.NewRunRecord(res, err, cfg.Redact)
				cliutil.EncodeRunRecord(json.NewEncoder(cmd.OutOrStdout()), cmd.ErrOrStderr(), rec)
				return exitStatus(res, err)
			}
			return reportRun(cmd, res, err)
		},
	}

	cmd.Flags().StringVarP(&workdir, "chdir", "C", "", "Working directory for the command")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Deadline for the command (default from config)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit a JSON run record instead of human output")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address for the duration of the run")

	return cmd
}

func reportRun(cmd *cobra.Command, res *runner.Result, err error) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	var timeoutErr *runner.TimeoutError
	var cancelErr *runner.CancelError
	switch {
	case err == nil:
		writeCaptured(stdout, res.Stdout)
		writeCaptured(stderr, res.Stderr)
		status(color.FgGreen).Fprintf(stderr, "leash: exit %d after %s\n", res.ExitCode, res.Duration.Round(time.Millisecond))
	case errors.As(err, &timeoutErr):
		writeCaptured(stdout, timeoutErr.Stdout)
		writeCaptured(stderr, timeoutErr.Stderr)
		status(color.FgRed).Fprintf(stderr, "leash: %v\n", err)
	case errors.As(err, &cancelErr):
		writeCaptured(stdout, cancelErr.Stdout)
		writeCaptured(stderr, cancelErr.Stderr)
		status(color.FgYellow).Fprintf(stderr, "leash: %v\n", err)
	}
	return exitStatus(res, err)
}

// exitStatus maps a run outcome to the leash process exit code: the command's
// own code on success, 124 on timeout, 130 on cancellation, 127 when the
// command never launched.
func exitStatus(res *runner.Result, err error) error {
	var timeoutErr *runner.TimeoutError
	var cancelErr *runner.CancelError
	var launchErr *runner.LaunchError
	switch {
	case err == nil:
		if res.ExitCode == 0 {
			return nil
		}
		return &exitCodeError{code: res.ExitCode}
	case errors.As(err, &timeoutErr):
		return &exitCodeError{code: 124}
	case errors.As(err, &cancelErr):
		return &exitCodeError{code: 130}
	case errors.As(err, &launchErr):
		return &exitCodeError{code: 127, message: err.Error()}
	default:
		return err
	}
}

func writeCaptured(w io.Writer, text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(w, text)
}

func status(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		c.DisableColor()
	}
	return c
}

func serveMetrics(addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux}
	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", serveErr)
		}
	}()
	return func() { _ = srv.Close() }, nil
}
