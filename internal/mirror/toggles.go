package mirror

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kalambet/devsettings/internal/haptics"
	"github.com/kalambet/devsettings/internal/provider"
	"github.com/kalambet/devsettings/internal/radio"
	"github.com/kalambet/devsettings/internal/storage"
)

const (
	refreshHigh = 120.0
	refreshLow  = 60.0
	refreshAuto = 90.0
)

func (c *Controller) persistBool(key string, v bool) error {
	if err := c.deps.Prefs.SetBool(storage.DefaultNamespace, key, v); err != nil {
		return fmt.Errorf("persisting %s: %w", key, err)
	}
	return nil
}

func (c *Controller) persistInt(key string, v int) error {
	if err := c.deps.Prefs.SetInt(storage.DefaultNamespace, key, v); err != nil {
		return fmt.Errorf("persisting %s: %w", key, err)
	}
	return nil
}

func (c *Controller) writeFile(path, v string) {
	if !c.deps.Files.WriteValue(path, v) {
		c.log.Debug().Str("path", path).Msg("device file not writable")
	}
}

func (c *Controller) runService(ctx context.Context, name string, on bool) {
	if c.deps.Services == nil || name == "" {
		return
	}
	var err error
	if on {
		err = c.deps.Services.Start(ctx, name)
	} else {
		err = c.deps.Services.Stop(ctx, name)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("service", name).Bool("start", on).Msg("service command failed")
	}
}

func (c *Controller) logPut(err error, key string) {
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("settings provider write failed")
	}
}

func (c *Controller) setHBM(ctx context.Context, s Setting, v value) error {
	if err := c.persistBool(s.Key, v.Bool); err != nil {
		return err
	}
	c.writeFile(s.DevicePath, s.Encode(v.Text))
	c.runService(ctx, c.deps.Profile.Services.HBM, v.Bool)
	return nil
}

func (c *Controller) setAutoHBM(ctx context.Context, s Setting, v value) error {
	if err := c.persistBool(s.Key, v.Bool); err != nil {
		return err
	}
	if c.deps.Observer != nil {
		if err := c.deps.Observer.Reregister(ctx); err != nil {
			c.log.Warn().Err(err).Msg("re-registering settings observer")
		}
	}
	return nil
}

func (c *Controller) setRefreshRate(ctx context.Context, s Setting, v value) error {
	if err := c.persistBool(s.Key, v.Bool); err != nil {
		return err
	}
	hz := refreshLow
	if v.Bool {
		hz = refreshHigh
	}
	p := c.deps.Provider
	c.logPut(provider.PutFloat(ctx, p, provider.System, provider.KeyPeakRefreshRate, hz), provider.KeyPeakRefreshRate)
	c.logPut(provider.PutFloat(ctx, p, provider.System, provider.KeyMinRefreshRate, hz), provider.KeyMinRefreshRate)
	return nil
}

func (c *Controller) setAutoRefreshRate(ctx context.Context, s Setting, v value) error {
	if err := c.persistBool(s.Key, v.Bool); err != nil {
		return err
	}
	p := c.deps.Provider
	c.logPut(provider.PutFloat(ctx, p, provider.System, provider.KeyPeakRefreshRate, refreshAuto), provider.KeyPeakRefreshRate)
	c.logPut(provider.PutFloat(ctx, p, provider.System, provider.KeyMinRefreshRate, refreshLow), provider.KeyMinRefreshRate)
	flag := 0
	if v.Bool {
		flag = 1
	}
	c.logPut(provider.PutInt(ctx, p, provider.System, provider.KeyAutoRefreshRate, flag), provider.KeyAutoRefreshRate)

	// Auto mode overrides the manual switch.
	if v.Bool {
		if err := c.persistBool(KeyRefreshRate, false); err != nil {
			return err
		}
		c.session.Bind(KeyRefreshRate, "false", false)
	} else {
		c.session.SetEnabled(KeyRefreshRate, true)
	}
	return nil
}

func (c *Controller) setFPSInfo(ctx context.Context, s Setting, v value) error {
	if err := c.persistBool(s.Key, v.Bool); err != nil {
		return err
	}
	c.runService(ctx, c.deps.Profile.Services.FPSOverlay, v.Bool)
	return nil
}

func (c *Controller) setVibStrength(ctx context.Context, s Setting, v value) error {
	if err := c.persistInt(s.Key, v.Int); err != nil {
		return err
	}
	c.writeFile(s.DevicePath, strconv.Itoa(v.Int))
	if vib := c.deps.Vibrator; vib != nil && c.deps.Tasks != nil {
		c.deps.Tasks.Submit("vib-pulse", func(ctx context.Context) error {
			return vib.Vibrate(ctx, haptics.TestPulse)
		})
	}
	return nil
}

func (c *Controller) setSwitchFile(_ context.Context, s Setting, v value) error {
	if err := c.persistBool(s.Key, v.Bool); err != nil {
		return err
	}
	c.writeFile(s.DevicePath, s.Encode(v.Text))
	return nil
}

func (c *Controller) setDolbyAtmos(ctx context.Context, s Setting, v value) error {
	if err := c.persistBool(s.Key, v.Bool); err != nil {
		return err
	}
	if c.deps.Services != nil && c.deps.Profile.DolbyComponent != "" {
		if err := c.deps.Services.SetComponentEnabled(ctx, c.deps.Profile.DolbyComponent, v.Bool); err != nil {
			c.log.Warn().Err(err).Str("component", c.deps.Profile.DolbyComponent).Msg("toggling audio component")
		}
	}
	c.runService(ctx, c.deps.Profile.Services.Dolby, v.Bool)
	return nil
}

func (c *Controller) setNrMode(ctx context.Context, s Setting, v value) error {
	tunnel := c.deps.Radio.Current()
	if tunnel == nil {
		c.deps.Notifier.Warn(MsgRadioUnavailable)
		return ErrProtocolUnavailable
	}
	if c.deps.Slots == nil {
		c.deps.Notifier.Warn(MsgNoSimSlot)
		return ErrNoSimSlot
	}
	slot, err := c.deps.Slots.DefaultDataSlot(ctx)
	if err != nil {
		c.log.Debug().Err(err).Msg("resolving default data slot")
		c.deps.Notifier.Warn(MsgNoSimSlot)
		return ErrNoSimSlot
	}

	if err := c.persistInt(s.Key, v.Int); err != nil {
		return err
	}
	c.logPut(provider.PutInt(ctx, c.deps.Provider, provider.Global, provider.KeyNrDisableMode, v.Int), provider.KeyNrDisableMode)

	mode := radio.NrMode(v.Int)
	if c.deps.Tasks != nil {
		c.deps.Tasks.Submit("nr-mode", func(ctx context.Context) error {
			return tunnel.SetNrMode(ctx, slot, mode)
		})
	}
	return nil
}

// setGeneric persists keys that have no mirror.
func (c *Controller) setGeneric(_ context.Context, s Setting, v value) error {
	switch s.Kind {
	case KindBool:
		return c.persistBool(s.Key, v.Bool)
	default:
		return c.persistInt(s.Key, v.Int)
	}
}

func refreshRateEnabled(ctx context.Context, p provider.Provider) (bool, error) {
	peak, err := provider.GetFloat(ctx, p, provider.System, provider.KeyPeakRefreshRate, refreshHigh)
	if err != nil {
		return false, err
	}
	low, err := provider.GetFloat(ctx, p, provider.System, provider.KeyMinRefreshRate, refreshLow)
	if err != nil {
		return false, err
	}
	return peak == refreshHigh && low == refreshHigh, nil
}

func autoRefreshEnabled(ctx context.Context, p provider.Provider) (bool, error) {
	flag, err := provider.GetInt(ctx, p, provider.System, provider.KeyAutoRefreshRate, 0)
	if err != nil {
		return false, err
	}
	return flag == 1, nil
}
