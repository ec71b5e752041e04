// Package cmdexec runs on-device binaries and captures their combined
// output.
package cmdexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Func is the signature of Run. Packages keep one as a field so tests can
// swap the process boundary out.
type Func func(ctx context.Context, name string, args ...string) ([]byte, error)

// Error is a failed command together with what it printed.
type Error struct {
	Name   string
	Args   []string
	Output string
	// Code is the exit status, or -1 when the process never exited
	// normally (missing binary, killed, cancelled).
	Code int
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Name, strings.Join(e.Args, " "), e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Run executes name with args. On failure the returned error is an *Error
// and the output captured so far is still returned.
func Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	if err == nil {
		return buf.Bytes(), nil
	}
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return buf.Bytes(), &Error{
		Name:   name,
		Args:   args,
		Output: strings.TrimSpace(buf.String()),
		Code:   code,
		Err:    err,
	}
}

// ExitCode returns the exit status carried by err, or -1.
func ExitCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return -1
}
