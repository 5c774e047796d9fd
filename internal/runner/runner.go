// Package runner executes one external command under a wall-clock deadline,
// captures its output line by line, and guarantees the process does not
// outlive the run. On timeout the entire descendant tree is reaped before the
// failure is reported.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/leash-sh/leash/internal/metrics"
	"github.com/leash-sh/leash/internal/outbuf"
	"github.com/leash-sh/leash/internal/proctree"
)

// Request describes a single command execution. It is constructed once per
// invocation and never mutated by the runner.
type Request struct {
	Dir     string
	Path    string
	Args    []string
	Timeout time.Duration
}

// Result captures a run that exited on its own before the deadline and before
// any cancellation. ExitCode is the process's own code; Duration is measured
// from spawn to confirmed exit.
type Result struct {
	RunID    string
	Dir      string
	Path     string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes commands. A single Runner is safe for concurrent use; every
// run owns its process handle, buffers, and timer exclusively.
type Runner struct {
	dir       proctree.Directory
	reaper    *proctree.Reaper
	killGrace time.Duration
	log       *logrus.Entry
}

// New constructs a runner over the provided process directory and reaper.
// killGrace is how long finalization waits after the graceful stop signal
// before force-killing the root; zero skips straight to the force kill.
func New(dir proctree.Directory, reaper *proctree.Reaper, killGrace time.Duration, log *logrus.Entry) *Runner {
	if log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		log = logrus.NewEntry(logger)
	}
	return &Runner{dir: dir, reaper: reaper, killGrace: killGrace, log: log}
}

// Run executes the request and blocks until the process exits, the deadline
// elapses, or ctx is cancelled, whichever happens first.
//
// On natural exit it returns a Result. On deadline it reaps the descendant
// tree and returns a *TimeoutError carrying partial output. On cancellation
// it returns a *CancelError wrapping ctx.Err(); the descendant tree is
// deliberately not swept on that path, since a deadline means the command is
// presumed hung while caller cancellation carries no such presumption. Every
// path, success included, re-checks the root process and kills it if alive.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Path == "" {
		metrics.IncRun(metrics.OutcomeLaunchError)
		return nil, &LaunchError{Dir: req.Dir, Err: errors.New("request requires a command")}
	}
	if req.Timeout <= 0 {
		metrics.IncRun(metrics.OutcomeLaunchError)
		return nil, &LaunchError{Dir: req.Dir, Path: req.Path, Args: req.Args, Err: errors.New("request requires a positive timeout")}
	}

	runID := uuid.NewString()
	log := r.log.WithFields(logrus.Fields{"run_id": runID, "command": req.Path})

	cmd := exec.Command(req.Path, req.Args...)
	cmd.Dir = req.Dir
	configureCmdSysProcAttr(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		metrics.IncRun(metrics.OutcomeLaunchError)
		return nil, &LaunchError{Dir: req.Dir, Path: req.Path, Args: req.Args, Err: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		metrics.IncRun(metrics.OutcomeLaunchError)
		return nil, &LaunchError{Dir: req.Dir, Path: req.Path, Args: req.Args, Err: err}
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		metrics.IncRun(metrics.OutcomeLaunchError)
		return nil, &LaunchError{Dir: req.Dir, Path: req.Path, Args: req.Args, Err: err}
	}
	pid := int32(cmd.Process.Pid)
	log = log.WithField("pid", pid)
	log.Debug("process started")

	// The directory's view of the start time anchors the pid-reuse guard. If
	// the lookup fails, the spawn wall clock only widens the guard window,
	// which can skip kills but never target a recycled id.
	rootStart, err := r.dir.StartTime(pid)
	if err != nil {
		log.WithError(err).Debug("start time lookup failed, using spawn clock")
		rootStart = started
	}

	agg := outbuf.New()
	readErrs := make(chan error, 2)
	go stream(stdoutPipe, agg.Stdout(), readErrs)
	go stream(stderrPipe, agg.Stderr(), readErrs)

	// The wait goroutine joins both stream readers before the blocking Wait,
	// so a value on waitCh means the exit is confirmed and both buffers are
	// final. Nothing reads the exit code from any earlier notification.
	waitCh := make(chan error, 1)
	go func() {
		<-agg.Stdout().Done()
		<-agg.Stderr().Done()
		waitCh <- cmd.Wait()
		close(waitCh)
	}()

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()
	defer r.finalize(cmd, pid, waitCh, log)

	select {
	case waitErr, ok := <-waitCh:
		if !ok {
			return nil, fmt.Errorf("wait channel closed before exit of %s", req.Path)
		}
		if readErr := firstStreamError(readErrs); readErr != nil {
			metrics.IncRun(metrics.OutcomeFault)
			return nil, fmt.Errorf("read output of %s: %w", req.Path, readErr)
		}
		duration := time.Since(started)
		exitCode := 0
		if waitErr != nil {
			var exitErr *exec.ExitError
			if !errors.As(waitErr, &exitErr) {
				metrics.IncRun(metrics.OutcomeFault)
				return nil, fmt.Errorf("wait for %s: %w", req.Path, waitErr)
			}
			exitCode = exitErr.ExitCode()
		}
		log.WithFields(logrus.Fields{"exit_code": exitCode, "duration": duration}).Debug("process exited")
		metrics.IncRun(metrics.OutcomeOK)
		metrics.ObserveRunDuration(duration)
		return &Result{
			RunID:    runID,
			Dir:      req.Dir,
			Path:     req.Path,
			Args:     req.Args,
			ExitCode: exitCode,
			Stdout:   agg.Stdout().Read(),
			Stderr:   agg.Stderr().Read(),
			Duration: duration,
		}, nil

	case <-timer.C:
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The caller's signal fired while the deadline raced it; the
			// cancellation wins and no tree sweep happens.
			metrics.IncRun(metrics.OutcomeCancelled)
			return nil, r.cancelError(req, agg, ctxErr)
		}
		reaped := r.reaper.Reap(proctree.Descriptor{PID: pid, StartTime: rootStart})
		if reaped > 0 {
			metrics.AddReapedProcesses(reaped)
		}
		log.WithFields(logrus.Fields{"timeout": req.Timeout, "reaped": reaped}).Warn("deadline elapsed, tree reaped")
		metrics.IncRun(metrics.OutcomeTimeout)
		return nil, &TimeoutError{
			Dir:     req.Dir,
			Path:    req.Path,
			Args:    req.Args,
			Timeout: req.Timeout,
			Stdout:  agg.Stdout().Read(),
			Stderr:  agg.Stderr().Read(),
		}

	case <-ctx.Done():
		log.Debug("run cancelled by caller")
		metrics.IncRun(metrics.OutcomeCancelled)
		return nil, r.cancelError(req, agg, ctx.Err())
	}
}

func (r *Runner) cancelError(req Request, agg *outbuf.Aggregator, ctxErr error) *CancelError {
	return &CancelError{
		Dir:    req.Dir,
		Path:   req.Path,
		Args:   req.Args,
		Stdout: agg.Stdout().Read(),
		Stderr: agg.Stderr().Read(),
		Err:    ctxErr,
	}
}

// finalize runs on every exit path. It re-checks whether the root process is
// still alive and stops it if so: a graceful signal first, then a force kill
// once the grace elapses. A drain is always left on the wait channel so the
// child is collected by the os once its pipes close.
func (r *Runner) finalize(cmd *exec.Cmd, pid int32, waitCh <-chan error, log *logrus.Entry) {
	defer func() {
		go func() { <-waitCh }()
	}()

	alive, err := r.dir.Alive(pid)
	if err == nil && !alive {
		return
	}

	if r.killGrace > 0 {
		// Attempt a graceful shutdown first.
		if termErr := signalTerm(cmd.Process); termErr == nil {
			timer := time.NewTimer(r.killGrace)
			defer timer.Stop()
			select {
			case <-waitCh:
				return
			case <-timer.C:
			}
		}
	}

	if killErr := cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
		log.WithError(killErr).Debug("finalize: kill root")
	}
}

// stream copies lines from r into s. Lines of any length are captured. A
// read failure is reported on errCh and the pipe is drained regardless, so
// the child can never block on a full pipe buffer.
func stream(r io.Reader, s *outbuf.Stream, errCh chan<- error) {
	defer s.Close()
	reader := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			s.Append(strings.TrimRight(line, "\r\n"))
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			errCh <- nil
		} else {
			errCh <- err
			_, _ = io.Copy(io.Discard, r)
		}
		return
	}
}

// firstStreamError collects the reader reports. Both readers have reported by
// the time the wait channel delivers, so the drain never blocks.
func firstStreamError(ch <-chan error) error {
	for {
		select {
		case err := <-ch:
			if err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
