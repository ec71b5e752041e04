package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kalambet/devsettings/internal/config"
	"github.com/kalambet/devsettings/internal/device"
	"github.com/kalambet/devsettings/internal/haptics"
	"github.com/kalambet/devsettings/internal/mirror"
	"github.com/kalambet/devsettings/internal/observer"
	"github.com/kalambet/devsettings/internal/provider"
	"github.com/kalambet/devsettings/internal/radio"
	"github.com/kalambet/devsettings/internal/services"
	"github.com/kalambet/devsettings/internal/storage"
	"github.com/kalambet/devsettings/internal/sushell"
	"github.com/kalambet/devsettings/internal/sysfs"
	"github.com/kalambet/devsettings/internal/tasks"
)

// app holds the long-lived pieces every command shares.
type app struct {
	cfg      config.Config
	log      *zerolog.Logger
	store    *storage.Store
	profile  device.Profile
	files    *sysfs.Store
	services services.Controller
	provider provider.Provider
	radio    *radio.Binding
	shell    sushell.Runner
}

// openApp opens storage and the provider and loads the device profile.
// The radio tunnel is bound when one is configured.
func openApp(cfg config.Config, log *zerolog.Logger) (*app, error) {
	profile, err := device.Load(cfg.Device.Profile)
	if err != nil {
		return nil, err
	}

	prov, err := newProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		profile:  profile,
		files:    sysfs.New(log),
		services: services.NewExec(log),
		provider: prov,
		radio:    &radio.Binding{},
		shell:    sushell.New(""),
	}
	if t := radio.NewExecTunnel(cfg.Radio.TunnelCommand); t != nil {
		a.radio.Bind(t)
		log.Debug().Str("command", cfg.Radio.TunnelCommand).Msg("radio tunnel bound")
	}
	return a, nil
}

func newProvider(cfg config.ProviderConfig) (provider.Provider, error) {
	switch cfg.Backend {
	case config.BackendFile:
		f, err := provider.NewFile(cfg.File)
		if err != nil {
			return nil, err
		}
		return f, nil
	case config.BackendShell, "":
		return provider.NewShell(""), nil
	default:
		return nil, fmt.Errorf("unknown provider backend %q", cfg.Backend)
	}
}

func (a *app) Close() error {
	a.radio.Unbind()
	return a.store.Close()
}

// serviceSwitch re-registers the observer through its init service. Used
// when no in-process worker is running.
func (a *app) serviceSwitch() observer.ServiceSwitch {
	return observer.ServiceSwitch{
		Prefs:    a.store,
		Services: a.services,
		Name:     a.profile.Services.Observer,
	}
}

func (a *app) deps(obs mirror.Observer, sched tasks.Scheduler, n mirror.Notifier) mirror.Deps {
	p := a.profile
	return mirror.Deps{
		Profile:  p,
		Prefs:    a.store,
		Boots:    a.store,
		Provider: a.provider,
		Files:    a.files,
		Services: a.services,
		Vibrator: haptics.NewLEDVibrator(p.Paths.VibratorDuration, p.Paths.VibratorActivate, a.files, a.log),
		Radio:    a.radio,
		Slots:    radio.ProviderSlots{Provider: a.provider, Slots: p.SimSlots},
		Tasks:    sched,
		Observer: obs,
		Shell:    a.shell,
		Notifier: n,
		Logger:   a.log,
	}
}

// withController runs fn against a controller for a one-shot command and
// waits for any background work it scheduled.
func withController(ctx context.Context, fn func(c *mirror.Controller) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level)

	a, err := openApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("closing storage")
		}
	}()

	sched := tasks.NewGoScheduler(ctx, log)
	defer sched.Wait()

	c, err := mirror.Open(ctx, a.deps(a.serviceSwitch(), sched, cliNotifier{}))
	if err != nil {
		return err
	}
	return fn(c)
}
