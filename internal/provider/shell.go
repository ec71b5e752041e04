package provider

import (
	"context"
	"strings"

	"github.com/kalambet/devsettings/internal/cmdexec"
)

// Shell talks to the on-device settings provider through the `settings`
// command-line tool.
type Shell struct {
	bin string
	run cmdexec.Func
}

// NewShell returns a Shell using bin (default "settings").
func NewShell(bin string) *Shell {
	if bin == "" {
		bin = "settings"
	}
	return &Shell{bin: bin, run: cmdexec.Run}
}

func (s *Shell) Get(ctx context.Context, ns Namespace, key string) (string, bool, error) {
	out, err := s.run(ctx, s.bin, "get", string(ns), key)
	if err != nil {
		return "", false, err
	}
	v := strings.TrimSpace(string(out))
	// The tool prints "null" for keys that were never set.
	if v == "null" || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (s *Shell) Put(ctx context.Context, ns Namespace, key, value string) error {
	if _, err := s.run(ctx, s.bin, "put", string(ns), key, value); err != nil {
		return err
	}
	return nil
}
