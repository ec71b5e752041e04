// Package sushell runs commands through su.
package sushell

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"

	"github.com/kalambet/devsettings/internal/cmdexec"
)

// ErrSuDenied means su is missing or refused the request.
var ErrSuDenied = errors.New("cannot get su")

// Runner executes a shell command with elevated privileges and returns
// its combined output.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// Su runs commands as `su -c <command>`.
type Su struct {
	bin string
	run cmdexec.Func
}

func New(bin string) *Su {
	if bin == "" {
		bin = "su"
	}
	return &Su{bin: bin, run: cmdexec.Run}
}

func (s *Su) Run(ctx context.Context, command string) (string, error) {
	out, err := s.run(ctx, s.bin, "-c", command)
	text := strings.TrimSpace(string(out))
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return text, fmt.Errorf("%w: %v", ErrSuDenied, err)
		}
		// su exits 1 with "permission denied" when the request is refused.
		if cmdexec.ExitCode(err) == 1 && strings.Contains(strings.ToLower(text), "permission denied") {
			return text, fmt.Errorf("%w: %s", ErrSuDenied, text)
		}
		return text, fmt.Errorf("su -c %q: %w", command, err)
	}
	return text, nil
}
