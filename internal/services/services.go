// Package services starts and stops init services and toggles package
// components on the device.
package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kalambet/devsettings/internal/cmdexec"
)

// Controller manages background services. Errors are reported to the
// caller, which decides whether they matter.
type Controller interface {
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	SetComponentEnabled(ctx context.Context, component string, enabled bool) error
}

// Exec drives init services through the start/stop binaries and
// components through the package manager.
type Exec struct {
	run cmdexec.Func
	log *zerolog.Logger
}

func NewExec(logger *zerolog.Logger) *Exec {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Exec{run: cmdexec.Run, log: logger}
}

func (e *Exec) Start(ctx context.Context, name string) error {
	return e.do(ctx, "start", name)
}

func (e *Exec) Stop(ctx context.Context, name string) error {
	return e.do(ctx, "stop", name)
}

func (e *Exec) SetComponentEnabled(ctx context.Context, component string, enabled bool) error {
	verb := "disable"
	if enabled {
		verb = "enable"
	}
	return e.do(ctx, "pm", verb, component)
}

func (e *Exec) do(ctx context.Context, name string, args ...string) error {
	if _, err := e.run(ctx, name, args...); err != nil {
		return fmt.Errorf("service command: %w", err)
	}
	e.log.Debug().Str("cmd", name).Strs("args", args).Msg("service command ok")
	return nil
}

// Recorder is an in-memory Controller that remembers which services are
// running. It backs the off-device profile and tests.
type Recorder struct {
	Running    map[string]bool
	Components map[string]bool
	Calls      []string
}

func NewRecorder() *Recorder {
	return &Recorder{Running: map[string]bool{}, Components: map[string]bool{}}
}

func (r *Recorder) Start(_ context.Context, name string) error {
	r.Running[name] = true
	r.Calls = append(r.Calls, "start "+name)
	return nil
}

func (r *Recorder) Stop(_ context.Context, name string) error {
	r.Running[name] = false
	r.Calls = append(r.Calls, "stop "+name)
	return nil
}

func (r *Recorder) SetComponentEnabled(_ context.Context, component string, enabled bool) error {
	r.Components[component] = enabled
	if enabled {
		r.Calls = append(r.Calls, "enable "+component)
	} else {
		r.Calls = append(r.Calls, "disable "+component)
	}
	return nil
}
