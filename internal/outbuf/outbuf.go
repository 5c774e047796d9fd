// Package outbuf collects line-oriented process output. Each stream is fed
// through a channel owned by a single consuming goroutine, so producers never
// contend on the buffer itself and stdout and stderr never contend with each
// other.
package outbuf

import (
	"strings"
	"sync"
)

// Stream is an append-only line buffer for one output stream. Lines are
// delivered via Append in producer order and land in the buffer in that same
// order. Close marks end-of-stream; Done is observable independently of any
// process exit signal.
type Stream struct {
	in   chan string
	done chan struct{}

	mu    sync.Mutex
	lines []string
}

func newStream() *Stream {
	s := &Stream{
		in:   make(chan string, 64),
		done: make(chan struct{}),
	}
	go s.consume()
	return s
}

func (s *Stream) consume() {
	defer close(s.done)
	for line := range s.in {
		s.mu.Lock()
		s.lines = append(s.lines, line)
		s.mu.Unlock()
	}
}

// Append queues a line for the buffer. It may block briefly when the channel
// buffer is full but never blocks on readers of the buffer.
func (s *Stream) Append(line string) {
	s.in <- line
}

// Close signals end-of-stream. The producer must call it exactly once, after
// which Append must not be called again.
func (s *Stream) Close() {
	close(s.in)
}

// Done is closed once end-of-stream has been observed and every appended line
// has landed in the buffer.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Read returns the lines received so far joined with newlines. Before Done it
// is a consistent partial snapshot; after Done it is the complete stream.
func (s *Stream) Read() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.lines, "\n")
}

// Len reports how many lines have landed in the buffer so far.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Aggregator pairs the stdout and stderr buffers for one run.
type Aggregator struct {
	stdout *Stream
	stderr *Stream
}

// New constructs an aggregator with both stream owners started.
func New() *Aggregator {
	return &Aggregator{
		stdout: newStream(),
		stderr: newStream(),
	}
}

// Stdout returns the standard output stream buffer.
func (a *Aggregator) Stdout() *Stream { return a.stdout }

// Stderr returns the standard error stream buffer.
func (a *Aggregator) Stderr() *Stream { return a.stderr }
