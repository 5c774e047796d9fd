package outbuf

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestStreamPreservesAppendOrder(t *testing.T) {
	agg := New()
	out := agg.Stdout()

	for i := 0; i < 100; i++ {
		out.Append(fmt.Sprintf("line-%03d", i))
	}
	out.Close()

	select {
	case <-out.Done():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stream to drain")
	}

	lines := strings.Split(out.Read(), "\n")
	if len(lines) != 100 {
		t.Fatalf("expected 100 lines, got %d", len(lines))
	}
	for i, line := range lines {
		if want := fmt.Sprintf("line-%03d", i); line != want {
			t.Fatalf("line %d: got %q, want %q", i, line, want)
		}
	}
}

func TestStreamPartialReadBeforeClose(t *testing.T) {
	agg := New()
	out := agg.Stdout()

	out.Append("first")
	out.Append("second")

	// The owner goroutine drains asynchronously; wait for the lines to land.
	deadline := time.Now().Add(time.Second)
	for out.Len() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for appends to land, have %d", out.Len())
		}
		time.Sleep(time.Millisecond)
	}

	if got := out.Read(); got != "first\nsecond" {
		t.Fatalf("partial read mismatch: %q", got)
	}

	select {
	case <-out.Done():
		t.Fatal("Done closed before Close was called")
	default:
	}

	out.Close()
	<-out.Done()
	if got := out.Read(); got != "first\nsecond" {
		t.Fatalf("final read mismatch: %q", got)
	}
}

func TestStreamsAreIndependent(t *testing.T) {
	agg := New()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			agg.Stdout().Append("out")
		}
		agg.Stdout().Close()
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			agg.Stderr().Append("err")
		}
		agg.Stderr().Close()
	}()
	wg.Wait()

	<-agg.Stdout().Done()
	<-agg.Stderr().Done()

	if n := agg.Stdout().Len(); n != 50 {
		t.Fatalf("stdout line count: got %d, want 50", n)
	}
	if n := agg.Stderr().Len(); n != 50 {
		t.Fatalf("stderr line count: got %d, want 50", n)
	}
	if strings.Contains(agg.Stdout().Read(), "err") {
		t.Fatal("stderr line leaked into stdout buffer")
	}
}

func TestEmptyStreamReadsEmpty(t *testing.T) {
	agg := New()
	agg.Stderr().Close()
	<-agg.Stderr().Done()
	if got := agg.Stderr().Read(); got != "" {
		t.Fatalf("expected empty read, got %q", got)
	}
}
