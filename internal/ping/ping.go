// Package ping runs ICMP probe rounds and parses their summary output.
package ping

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Params controls one probe round
type Params struct {
	Count         int           // probes per target
	Retries       int           // retries of a lost probe, not counting the first try
	BackoffFactor float64       // timeout multiplier between retries
	MinInterval   time.Duration // minimum spacing between probes to any target
}

// ProbeError reports a probe round that produced no usable output
type ProbeError struct {
	Op     string
	Err    error
	Stderr string
}

func (e *ProbeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("probe %s: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("probe %s: %v", e.Op, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Fping runs rounds with the fping binary
type Fping struct {
	path   string
	params Params
}

// NewFping creates a new Fping using the binary at path
func NewFping(path string, params Params) *Fping {
	return &Fping{path: path, params: params}
}

// Args returns the fping command line for addresses
func (f *Fping) Args(addresses []string) []string {
	// -C prints the per-target summary in the automation-friendly format,
	// -q drops per-probe messages, -r does not count the first try.
	args := []string{
		"-C" + strconv.Itoa(f.params.Count),
		"-q",
		"-B" + strconv.FormatFloat(f.params.BackoffFactor, 'f', -1, 64),
		"-r" + strconv.Itoa(f.params.Retries),
		"-4",
		"-i" + strconv.FormatInt(f.params.MinInterval.Milliseconds(), 10),
	}
	return append(args, addresses...)
}

// Probe executes one fping round and returns its summary output. fping
// writes the summaries to stderr. The process is not bound to ctx: a round
// that has started always runs to completion.
func (f *Fping) Probe(ctx context.Context, addresses []string) (string, error) {
	if len(addresses) == 0 {
		return "", &ProbeError{Op: "start", Err: errors.New("no targets")}
	}

	cmd := exec.Command(f.path, f.Args(addresses)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", &ProbeError{Op: "start", Err: err}
	}

	err := cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && (exitErr.ExitCode() == 1 || exitErr.ExitCode() == 2):
		// 1: some targets unreachable, 2: some names not found.
		// A process killed by a signal reports -1 and is a failure.
	case errors.As(err, &exitErr):
		return "", &ProbeError{Op: "run", Err: err, Stderr: firstLine(stderr.String())}
	default:
		return "", &ProbeError{Op: "read", Err: err}
	}

	return stderr.String(), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
