package ping

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

var testParams = Params{Count: 4, Retries: 1, BackoffFactor: 1.5, MinInterval: 100 * time.Millisecond}

func TestFpingArgs(t *testing.T) {
	f := NewFping("fping", testParams)
	got := f.Args([]string{"10.0.0.1", "10.0.0.2"})
	want := []string{"-C4", "-q", "-B1.5", "-r1", "-4", "-i100", "10.0.0.1", "10.0.0.2"}

	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

// fakeFping writes a shell script standing in for fping
func fakeFping(t *testing.T, stderr string, code int) string {
	t.Helper()
	return fakeFpingScript(t, "printf '%s' '"+stderr+"' >&2\necho ignored stdout\nexit "+string(rune('0'+code))+"\n")
}

func fakeFpingScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake fping needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available on PATH")
	}

	path := filepath.Join(t.TempDir(), "fping")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFpingProbe(t *testing.T) {
	output := "10.0.0.1 : 1.2 1.4 - 1.1\n10.0.0.2 : - - - -\n"

	tests := []struct {
		name    string
		code    int
		wantErr bool
	}{
		{name: "all reachable", code: 0},
		{name: "some unreachable", code: 1},
		{name: "some names not found", code: 2},
		{name: "invalid arguments", code: 3, wantErr: true},
		{name: "system call failure", code: 4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFping(fakeFping(t, output, tt.code), testParams)
			got, err := f.Probe(context.Background(), []string{"10.0.0.1", "10.0.0.2"})
			if tt.wantErr {
				var pe *ProbeError
				if !errors.As(err, &pe) {
					t.Fatalf("Probe() error = %v, want *ProbeError", err)
				}
				if pe.Stderr != "10.0.0.1 : 1.2 1.4 - 1.1" {
					t.Errorf("ProbeError.Stderr = %q", pe.Stderr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if got != output {
				t.Errorf("Probe() = %q, want %q", got, output)
			}
		})
	}
}

func TestFpingKilledBySignal(t *testing.T) {
	path := fakeFpingScript(t, "printf '%s' '10.0.0.1 : 1.2 1.4' >&2\nkill -9 $$\n")
	f := NewFping(path, testParams)

	got, err := f.Probe(context.Background(), []string{"10.0.0.1"})
	var pe *ProbeError
	if !errors.As(err, &pe) || pe.Op != "run" {
		t.Fatalf("Probe() = %q, %v; want run ProbeError for a killed process", got, err)
	}
}

func TestFpingProbeLaunchFailure(t *testing.T) {
	f := NewFping(filepath.Join(t.TempDir(), "no-such-fping"), testParams)
	_, err := f.Probe(context.Background(), []string{"10.0.0.1"})

	var pe *ProbeError
	if !errors.As(err, &pe) || pe.Op != "start" {
		t.Fatalf("Probe() error = %v, want start ProbeError", err)
	}
}

func TestFpingProbeNoTargets(t *testing.T) {
	f := NewFping("fping", testParams)
	if _, err := f.Probe(context.Background(), nil); err == nil {
		t.Error("expected error for empty target list")
	}
}

func TestFpingLocalhost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping fping integration test in short mode")
	}
	path, err := exec.LookPath("fping")
	if err != nil {
		t.Skip("fping binary not available on PATH")
	}

	f := NewFping(path, Params{Count: 2, Retries: 0, BackoffFactor: 1, MinInterval: 10 * time.Millisecond})
	out, err := f.Probe(context.Background(), []string{"127.0.0.1"})
	if err != nil {
		t.Skipf("skipping due to unexpected fping failure: %v", err)
	}

	t.Logf("fping output: %q", out)
	if !strings.HasPrefix(out, "127.0.0.1") {
		t.Errorf("expected summary line for 127.0.0.1, got %q", out)
	}
}

func TestFormatSummary(t *testing.T) {
	got := formatSummary("10.0.0.1", []time.Duration{
		1200 * time.Microsecond,
		-1,
		15 * time.Millisecond,
	})
	want := "10.0.0.1 : 1.20 - 15.00"
	if got != want {
		t.Errorf("formatSummary() = %q, want %q", got, want)
	}
}

func TestNativeProbeNoTargets(t *testing.T) {
	n := NewNative(testParams, false)
	if _, err := n.Probe(context.Background(), nil); err == nil {
		t.Error("expected error for empty target list")
	}
}

func TestReplyWindow(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   time.Duration
	}{
		{name: "no retries", params: Params{Retries: 0, BackoffFactor: 1.5}, want: 2 * time.Second},
		{name: "short backoff floors at reply wait", params: Params{Retries: 1, BackoffFactor: 1.5}, want: 2 * time.Second},
		{name: "retries with backoff", params: Params{Retries: 3, BackoffFactor: 2}, want: 7500 * time.Millisecond},
		{name: "flat backoff", params: Params{Retries: 5, BackoffFactor: 1}, want: 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := replyWindow(tt.params); got != tt.want {
				t.Errorf("replyWindow(%+v) = %v, want %v", tt.params, got, tt.want)
			}
		})
	}
}
