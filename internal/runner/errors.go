package runner

import (
	"fmt"
	"strings"
	"time"
)

// LaunchError reports a process that could not be started at all: bad
// executable path, permissions, or an invalid working directory. There is
// never a partial result behind one.
type LaunchError struct {
	Dir  string
	Path string
	Args []string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// TimeoutError reports a run whose deadline elapsed before the process
// exited. Stdout and Stderr hold whatever output had arrived when the
// deadline fired; the descendant tree has already been reaped by the time the
// error is returned.
type TimeoutError struct {
	Dir     string
	Path    string
	Args    []string
	Timeout time.Duration
	Stdout  string
	Stderr  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", commandLine(e.Path, e.Args), e.Timeout)
}

// CancelError reports a run interrupted by the caller's context. It wraps the
// context error unmodified, so errors.Is(err, context.Canceled) and
// errors.Is(err, context.DeadlineExceeded) see through it. Only the root
// process is killed on this path; descendants are not swept.
type CancelError struct {
	Dir    string
	Path   string
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("%s cancelled: %v", commandLine(e.Path, e.Args), e.Err)
}

func (e *CancelError) Unwrap() error { return e.Err }

func commandLine(path string, args []string) string {
	if len(args) == 0 {
		return path
	}
	return path + " " + strings.Join(args, " ")
}
