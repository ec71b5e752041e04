package radio

import (
	"context"

	"github.com/kalambet/devsettings/internal/provider"
)

// SlotResolver maps the default data subscription to a SIM slot index.
type SlotResolver interface {
	DefaultDataSlot(ctx context.Context) (int, error)
}

// ProviderSlots resolves the slot from the global default data subscription
// id. Subscription ids start at 1 and follow slot order.
type ProviderSlots struct {
	Provider provider.Provider
	Slots    int
}

func (r ProviderSlots) DefaultDataSlot(ctx context.Context) (int, error) {
	subID, err := provider.GetInt(ctx, r.Provider, provider.Global, provider.KeyDefaultDataSubID, -1)
	if err != nil {
		return -1, err
	}
	slot := subID - 1
	if subID < 1 || slot >= r.Slots {
		return -1, ErrNoSlot
	}
	return slot, nil
}
