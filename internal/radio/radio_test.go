package radio

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/devsettings/internal/cmdexec"
	"github.com/kalambet/devsettings/internal/provider"
)

type stubTunnel struct{ name string }

func (s *stubTunnel) SetNrMode(context.Context, int, NrMode) error { return nil }

func TestBinding_BindUnbind(t *testing.T) {
	var b Binding
	assert.Nil(t, b.Current())

	tun := &stubTunnel{name: "a"}
	b.Bind(tun)
	assert.Same(t, tun, b.Current())

	b.Unbind()
	assert.Nil(t, b.Current())

	b.Bind(tun)
	b.Bind(nil)
	assert.Nil(t, b.Current(), "binding nil must unbind")
}

func TestBinding_ConcurrentReaders(t *testing.T) {
	var b Binding
	tun := &stubTunnel{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			b.Bind(tun)
			b.Unbind()
		}()
		go func() {
			defer wg.Done()
			if cur := b.Current(); cur != nil {
				assert.Same(t, tun, cur)
			}
		}()
	}
	wg.Wait()
}

func TestNrMode_String(t *testing.T) {
	assert.Equal(t, "sa-disabled", NrSADisabled.String())
	assert.Equal(t, "nr-mode(7)", NrMode(7).String())
}

func TestProviderSlots(t *testing.T) {
	ctx := context.Background()
	p := provider.NewMemory()
	r := ProviderSlots{Provider: p, Slots: 2}

	_, err := r.DefaultDataSlot(ctx)
	assert.ErrorIs(t, err, ErrNoSlot, "unset subscription")

	require.NoError(t, provider.PutInt(ctx, p, provider.Global, provider.KeyDefaultDataSubID, 2))
	slot, err := r.DefaultDataSlot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, slot)

	require.NoError(t, provider.PutInt(ctx, p, provider.Global, provider.KeyDefaultDataSubID, 3))
	_, err = r.DefaultDataSlot(ctx)
	assert.ErrorIs(t, err, ErrNoSlot, "subscription beyond slot count")
}

func TestExecTunnel_AppendsSlotAndMode(t *testing.T) {
	tun := NewExecTunnel("/vendor/bin/nrctl --set")
	var got []string
	tun.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		got = append([]string{name}, args...)
		return nil, nil
	}

	require.NoError(t, tun.SetNrMode(context.Background(), 1, NrNSADisabled))
	assert.Equal(t, []string{"/vendor/bin/nrctl", "--set", "1", "2"}, got)
}

func TestExecTunnel_WrapsFailure(t *testing.T) {
	tun := NewExecTunnel("nrctl")
	tun.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		return []byte("no modem"), &cmdexec.Error{Name: name, Args: args, Output: "no modem", Code: 4, Err: errors.New("exit status 4")}
	}

	err := tun.SetNrMode(context.Background(), 0, NrSADisabled)
	require.Error(t, err)
	assert.Equal(t, 4, cmdexec.ExitCode(err))
	assert.Contains(t, err.Error(), "no modem")
}

func TestNewExecTunnel_Empty(t *testing.T) {
	assert.Nil(t, NewExecTunnel("   "))
	assert.NotNil(t, NewExecTunnel("/vendor/bin/nrctl --set"))
}
