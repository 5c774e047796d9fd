package cliutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leash-sh/leash/internal/runner"
)

func TestNewRunRecordFromResult(t *testing.T) {
	res := &runner.Result{
		RunID:    "run-1",
		Path:     "/bin/echo",
		Args:     []string{"hello"},
		ExitCode: 0,
		Stdout:   "hello",
		Duration: 42 * time.Millisecond,
	}

	rec := NewRunRecord(res, nil, false)
	if rec.Outcome != "ok" {
		t.Fatalf("outcome: got %q", rec.Outcome)
	}
	if rec.ExitCode == nil || *rec.ExitCode != 0 {
		t.Fatalf("exit code: got %v", rec.ExitCode)
	}
	if rec.Command != "/bin/echo hello" {
		t.Fatalf("command: got %q", rec.Command)
	}
	if rec.DurationMS != 42 {
		t.Fatalf("duration: got %d", rec.DurationMS)
	}
}

func TestNewRunRecordFromTimeout(t *testing.T) {
	err := &runner.TimeoutError{
		Path:    "/bin/sleep",
		Args:    []string{"60"},
		Timeout: time.Second,
		Stdout:  "partial",
	}

	rec := NewRunRecord(nil, err, false)
	if rec.Outcome != "timeout" {
		t.Fatalf("outcome: got %q", rec.Outcome)
	}
	if rec.ExitCode != nil {
		t.Fatal("timeout record must not carry an exit code")
	}
	if rec.Stdout != "partial" {
		t.Fatalf("stdout: got %q", rec.Stdout)
	}
	if rec.Message == "" {
		t.Fatal("expected a human-readable message")
	}
}

func TestNewRunRecordOutcomes(t *testing.T) {
	cancel := &runner.CancelError{Path: "/bin/true", Err: context.Canceled}
	if rec := NewRunRecord(nil, cancel, false); rec.Outcome != "cancelled" {
		t.Fatalf("cancel outcome: got %q", rec.Outcome)
	}
	launch := &runner.LaunchError{Path: "/nope", Err: errors.New("no such file")}
	if rec := NewRunRecord(nil, launch, false); rec.Outcome != "launch_error" {
		t.Fatalf("launch outcome: got %q", rec.Outcome)
	}
	if rec := NewRunRecord(nil, errors.New("pipe burst"), false); rec.Outcome != "fault" {
		t.Fatalf("fault outcome: got %q", rec.Outcome)
	}
}

func TestNewRunRecordRedacts(t *testing.T) {
	res := &runner.Result{Path: "curl", Args: []string{"--token=abc123"}}
	rec := NewRunRecord(res, nil, true)
	if strings.Contains(rec.Command, "abc123") {
		t.Fatalf("token leaked into record: %q", rec.Command)
	}
}

func TestEncodeRunRecord(t *testing.T) {
	var out bytes.Buffer
	enc := json.NewEncoder(&out)

	EncodeRunRecord(enc, &bytes.Buffer{}, RunRecord{Outcome: "ok", Command: "true"})

	var decoded map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if decoded["outcome"] != "ok" {
		t.Fatalf("outcome field: got %v", decoded["outcome"])
	}
}
