package cliutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/leash-sh/leash/internal/runner"
)

// RunRecord is the JSON form of a concluded run, successful or not.
type RunRecord struct {
	Timestamp  time.Time `json:"ts"`
	RunID      string    `json:"run_id,omitempty"`
	Command    string    `json:"command"`
	Outcome    string    `json:"outcome"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Stdout     string    `json:"stdout,omitempty"`
	Stderr     string    `json:"stderr,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// NewRunRecord builds a record from a runner outcome. Exactly one of res and
// err is meaningful. When redact is set the command line is masked.
func NewRunRecord(res *runner.Result, err error, redact bool) RunRecord {
	rec := RunRecord{Timestamp: time.Now()}

	command := func(path string, args []string) string {
		line := path
		if len(args) > 0 {
			line += " " + strings.Join(args, " ")
		}
		if redact {
			line = RedactCommandLine(line)
		}
		return line
	}

	switch {
	case err == nil && res != nil:
		rec.RunID = res.RunID
		rec.Command = command(res.Path, res.Args)
		rec.Outcome = "ok"
		code := res.ExitCode
		rec.ExitCode = &code
		rec.DurationMS = res.Duration.Milliseconds()
		rec.Stdout = res.Stdout
		rec.Stderr = res.Stderr
	default:
		rec.Message = err.Error()
		var timeoutErr *runner.TimeoutError
		var cancelErr *runner.CancelError
		var launchErr *runner.LaunchError
		switch {
		case errors.As(err, &timeoutErr):
			rec.Command = command(timeoutErr.Path, timeoutErr.Args)
			rec.Outcome = "timeout"
			rec.Stdout = timeoutErr.Stdout
			rec.Stderr = timeoutErr.Stderr
		case errors.As(err, &cancelErr):
			rec.Command = command(cancelErr.Path, cancelErr.Args)
			rec.Outcome = "cancelled"
			rec.Stdout = cancelErr.Stdout
			rec.Stderr = cancelErr.Stderr
		case errors.As(err, &launchErr):
			rec.Command = command(launchErr.Path, launchErr.Args)
			rec.Outcome = "launch_error"
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			rec.Outcome = "cancelled"
		default:
			rec.Outcome = "fault"
		}
	}
	return rec
}

// EncodeRunRecord encodes a record to JSON, reporting encoder failures to
// stderr instead of failing the run.
func EncodeRunRecord(enc *json.Encoder, stderr io.Writer, rec RunRecord) {
	if enc == nil {
		return
	}
	if err := enc.Encode(&rec); err != nil {
		fmt.Fprintf(stderr, "error: encode run record: %v\n", err)
	}
}
