package radio

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kalambet/devsettings/internal/cmdexec"
)

// ExecTunnel forwards SetNrMode to a vendor helper command, invoked as
// `<command...> <slot> <mode>`.
type ExecTunnel struct {
	argv []string
	run  cmdexec.Func
}

// NewExecTunnel splits command on whitespace. It returns nil for an empty
// command so callers can leave the binding unbound.
func NewExecTunnel(command string) *ExecTunnel {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil
	}
	return &ExecTunnel{argv: argv, run: cmdexec.Run}
}

func (e *ExecTunnel) SetNrMode(ctx context.Context, slot int, mode NrMode) error {
	args := append(append([]string{}, e.argv[1:]...), strconv.Itoa(slot), strconv.Itoa(int(mode)))
	if _, err := e.run(ctx, e.argv[0], args...); err != nil {
		return fmt.Errorf("setting NR mode %s on slot %d: %w", mode, slot, err)
	}
	return nil
}
