// Package radio holds the handle to the vendor radio tunnel that can
// disable 5G NR per SIM slot.
package radio

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
)

// NrMode selects which NR configurations are disabled.
type NrMode int

const (
	NrNoneDisabled NrMode = iota
	NrSADisabled
	NrNSADisabled
)

func (m NrMode) String() string {
	switch m {
	case NrNoneDisabled:
		return "none-disabled"
	case NrSADisabled:
		return "sa-disabled"
	case NrNSADisabled:
		return "nsa-disabled"
	default:
		return "nr-mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Tunnel is the remote radio protocol. SetNrMode may block on a remote
// call and must not be invoked on the toggle goroutine.
type Tunnel interface {
	SetNrMode(ctx context.Context, slot int, mode NrMode) error
}

// Binding holds the currently bound tunnel. Bind and Unbind are called by
// the connection owner; Current is safe from any goroutine and returns nil
// while unbound.
type Binding struct {
	p atomic.Pointer[tunnelBox]
}

type tunnelBox struct{ t Tunnel }

func (b *Binding) Bind(t Tunnel) {
	if t == nil {
		b.Unbind()
		return
	}
	b.p.Store(&tunnelBox{t: t})
}

func (b *Binding) Unbind() {
	b.p.Store(nil)
}

func (b *Binding) Current() Tunnel {
	box := b.p.Load()
	if box == nil {
		return nil
	}
	return box.t
}

// ErrNoSlot is returned when the default data subscription has no SIM slot.
var ErrNoSlot = errors.New("no SIM slot for default data subscription")
