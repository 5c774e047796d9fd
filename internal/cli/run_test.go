package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	stdruntime "runtime"
	"strconv"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if stdruntime.GOOS == "windows" {
		t.Skip("cli tests use /bin/sh")
	}
}

func TestRunEmitsJSONRecord(t *testing.T) {
	skipOnWindows(t)

	out, _, err := execute(t, "run", "--json", "-t", "5s", "--", "/bin/sh", "-c", "echo hi")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	var rec map[string]any
	if decodeErr := json.Unmarshal([]byte(out), &rec); decodeErr != nil {
		t.Fatalf("decode record from %q: %v", out, decodeErr)
	}
	if rec["outcome"] != "ok" {
		t.Fatalf("outcome: got %v", rec["outcome"])
	}
	if rec["exit_code"] != float64(0) {
		t.Fatalf("exit code: got %v", rec["exit_code"])
	}
	if !strings.Contains(rec["stdout"].(string), "hi") {
		t.Fatalf("stdout field: got %v", rec["stdout"])
	}
}

func TestRunPropagatesExitCode(t *testing.T) {
	skipOnWindows(t)

	_, _, err := execute(t, "run", "-t", "5s", "--", "/bin/sh", "-c", "exit 7")
	var codeErr *exitCodeError
	if !errors.As(err, &codeErr) {
		t.Fatalf("expected exitCodeError, got %v", err)
	}
	if codeErr.code != 7 {
		t.Fatalf("exit code: got %d, want 7", codeErr.code)
	}
}

func TestRunTimeoutMapsTo124(t *testing.T) {
	skipOnWindows(t)

	out, errOut, err := execute(t, "run", "-t", "300ms", "--", "/bin/sh", "-c", "echo partial; exec sleep 10")
	var codeErr *exitCodeError
	if !errors.As(err, &codeErr) {
		t.Fatalf("expected exitCodeError, got %v", err)
	}
	if codeErr.code != 124 {
		t.Fatalf("exit code: got %d, want 124", codeErr.code)
	}
	if !strings.Contains(out, "partial") {
		t.Fatalf("partial stdout missing from output: %q", out)
	}
	if !strings.Contains(errOut, "timed out") {
		t.Fatalf("timeout notice missing from stderr: %q", errOut)
	}
}

func TestRunLaunchFailureMapsTo127(t *testing.T) {
	skipOnWindows(t)

	_, _, err := execute(t, "run", "-t", "1s", "--", "/no/such/binary")
	var codeErr *exitCodeError
	if !errors.As(err, &codeErr) {
		t.Fatalf("expected exitCodeError, got %v", err)
	}
	if codeErr.code != 127 {
		t.Fatalf("exit code: got %d, want 127", codeErr.code)
	}
	if codeErr.message == "" {
		t.Fatal("launch failure should carry the underlying error message")
	}
}

func TestTreeShowsOwnProcess(t *testing.T) {
	out, _, err := execute(t, "tree", strconv.Itoa(os.Getpid()))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, strconv.Itoa(os.Getpid())) {
		t.Fatalf("own pid missing from tree output: %q", out)
	}
}

func TestReapRejectsBadPID(t *testing.T) {
	if _, _, err := execute(t, "reap", "zero"); err == nil {
		t.Fatal("expected error for non-numeric pid")
	}
}

func TestRootRegistersSubcommands(t *testing.T) {
	root := NewRootCmd()
	want := map[string]bool{"run": false, "reap": false, "tree": false}
	for _, sub := range root.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("subcommand %s not registered", name)
		}
	}
}
