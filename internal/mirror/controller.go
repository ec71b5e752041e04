// Package mirror keeps toggle values in step across persisted
// preferences, the settings provider and device files.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kalambet/devsettings/internal/device"
	"github.com/kalambet/devsettings/internal/haptics"
	"github.com/kalambet/devsettings/internal/provider"
	"github.com/kalambet/devsettings/internal/radio"
	"github.com/kalambet/devsettings/internal/services"
	"github.com/kalambet/devsettings/internal/storage"
	"github.com/kalambet/devsettings/internal/sushell"
	"github.com/kalambet/devsettings/internal/sysfs"
	"github.com/kalambet/devsettings/internal/tasks"
)

// Preferences is the persisted key-value store. Getters create the key
// with def when it is missing.
type Preferences interface {
	GetBool(namespace, key string, def bool) (bool, error)
	SetBool(namespace, key string, value bool) error
	GetInt(namespace, key string, def int) (int, error)
	SetInt(namespace, key string, value int) error
	GetString(namespace, key string) (string, error)
	SetString(namespace, key, value string) error
	Contains(namespace, key string) (bool, error)
}

// BootLog records which boots have already been restored.
type BootLog interface {
	RecordBoot(bootID, summary string) (bool, error)
	GetBootRun(bootID string) (storage.BootRun, error)
	ForgetBoot(bootID string) error
}

// Observer is the settings observer that must reload after auto HBM
// preferences change.
type Observer interface {
	Reregister(ctx context.Context) error
}

// Deps are the collaborators of the controller and the restorer.
type Deps struct {
	Profile  device.Profile
	Prefs    Preferences
	Boots    BootLog
	Provider provider.Provider
	Files    *sysfs.Store
	Services services.Controller
	Vibrator haptics.Vibrator
	Radio    *radio.Binding
	Slots    radio.SlotResolver
	Tasks    tasks.Scheduler
	Observer Observer
	Shell    sushell.Runner
	Notifier Notifier
	Logger   *zerolog.Logger

	// ProcRoot is scanned for the setup wizard process. Empty means /proc.
	ProcRoot string
}

func (d *Deps) fill() {
	if d.Logger == nil {
		nop := zerolog.Nop()
		d.Logger = &nop
	}
	if d.Files == nil {
		d.Files = sysfs.New(d.Logger)
	}
	if d.Notifier == nil {
		d.Notifier = LogNotifier{Log: d.Logger}
	}
	if d.Radio == nil {
		d.Radio = &radio.Binding{}
	}
	if d.ProcRoot == "" {
		d.ProcRoot = "/proc"
	}
}

// value is a parsed toggle input. Text is the canonical form kept in the
// session; Int carries the numeric form for int and enum kinds.
type value struct {
	Bool bool
	Int  int
	Text string
}

type toggleFunc func(ctx context.Context, s Setting, v value) error

// Controller applies toggle changes. Calls are serialized.
type Controller struct {
	deps     Deps
	log      *zerolog.Logger
	session  *Session
	settings []Setting
	index    map[string]Setting
	toggles  map[string]toggleFunc

	mu sync.Mutex
}

// Open binds every setting to its current value and decides once which
// controls are usable on this device.
func Open(ctx context.Context, deps Deps) (*Controller, error) {
	if deps.Prefs == nil || deps.Provider == nil {
		return nil, errors.New("mirror: preferences and settings provider are required")
	}
	deps.fill()
	c := &Controller{
		deps:     deps,
		log:      deps.Logger,
		session:  NewSession(),
		settings: Registry(deps.Profile),
		index:    make(map[string]Setting),
	}
	for _, s := range c.settings {
		c.index[s.Key] = s
	}
	c.toggles = map[string]toggleFunc{
		KeyHBM:             c.setHBM,
		KeyAutoHBM:         c.setAutoHBM,
		KeyRefreshRate:     c.setRefreshRate,
		KeyAutoRefreshRate: c.setAutoRefreshRate,
		KeyFPSInfo:         c.setFPSInfo,
		KeyVibStrength:     c.setVibStrength,
		KeyDCSwitch:        c.setSwitchFile,
		KeyNightSwitch:     c.setSwitchFile,
		KeyDolbyAtmos:      c.setDolbyAtmos,
		KeyNrMode:          c.setNrMode,
	}

	if err := c.bind(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) Session() *Session { return c.session }

func (c *Controller) Deps() Deps { return c.deps }

func (c *Controller) bind(ctx context.Context) error {
	prefs := c.deps.Prefs
	files := c.deps.Files
	ns := storage.DefaultNamespace

	for _, s := range c.settings {
		switch s.Key {
		case KeyRefreshRate, KeyAutoRefreshRate:
			// bound together below
		case KeyVibStrength:
			if !files.Writable(s.DevicePath) {
				c.log.Info().Str("path", s.DevicePath).Msg("vibration level not writable, control disabled")
				c.session.Bind(s.Key, s.Default, false)
				continue
			}
			def, err := strconv.Atoi(files.ReadValue(s.DevicePath, s.Default))
			if err != nil {
				def, _ = strconv.Atoi(s.Default)
			}
			v, err := prefs.GetInt(ns, s.Key, def)
			if err != nil {
				return fmt.Errorf("loading %s: %w", s.Key, err)
			}
			c.session.Bind(s.Key, strconv.Itoa(v), true)
		case KeyHBM:
			v, err := prefs.GetBool(ns, s.Key, false)
			if err != nil {
				return fmt.Errorf("loading %s: %w", s.Key, err)
			}
			c.session.Bind(s.Key, strconv.FormatBool(v), files.Writable(s.DevicePath))
		case KeyNrMode:
			v, err := prefs.GetInt(ns, s.Key, int(radio.NrNoneDisabled))
			if err != nil {
				return fmt.Errorf("loading %s: %w", s.Key, err)
			}
			c.session.Bind(s.Key, enumName(s, strconv.Itoa(v)), true)
		default:
			switch s.Kind {
			case KindBool:
				def, _ := strconv.ParseBool(s.Default)
				v, err := prefs.GetBool(ns, s.Key, def)
				if err != nil {
					return fmt.Errorf("loading %s: %w", s.Key, err)
				}
				c.session.Bind(s.Key, strconv.FormatBool(v), true)
			case KindInt:
				def, _ := strconv.Atoi(s.Default)
				v, err := prefs.GetInt(ns, s.Key, def)
				if err != nil {
					return fmt.Errorf("loading %s: %w", s.Key, err)
				}
				c.session.Bind(s.Key, strconv.Itoa(v), true)
			}
		}
	}

	if _, ok := c.index[KeyRefreshRate]; ok {
		// Unreadable provider values fall back to their defaults (peak 120,
		// min 60, auto off) so one failed read leaves the other controls usable.
		auto, err := autoRefreshEnabled(ctx, c.deps.Provider)
		if err != nil {
			c.log.Warn().Err(err).Msg("reading auto refresh rate, assuming off")
			auto = false
		}
		manual, err := refreshRateEnabled(ctx, c.deps.Provider)
		if err != nil {
			c.log.Warn().Err(err).Msg("reading refresh rates, assuming defaults")
			manual = false
		}
		c.session.Bind(KeyAutoRefreshRate, strconv.FormatBool(auto), true)
		c.session.Bind(KeyRefreshRate, strconv.FormatBool(manual && !auto), !auto)
	}
	return nil
}

// SetToggle applies value to the setting named key. A nil error means the
// change was accepted; device writes that fail are logged, not returned.
func (c *Controller) SetToggle(ctx context.Context, key, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.index[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	if !c.session.Enabled(key) {
		return fmt.Errorf("%w: %s", ErrControlDisabled, key)
	}
	v, err := parseValue(s, raw)
	if err != nil {
		return err
	}

	fn, ok := c.toggles[key]
	if !ok {
		fn = c.setGeneric
	}
	if err := fn(ctx, s, v); err != nil {
		return err
	}
	c.session.SetValue(key, v.Text)
	c.log.Debug().Str("key", key).Str("value", v.Text).Msg("toggle applied")
	return nil
}

// State is a snapshot of one control.
type State struct {
	Key     string   `json:"key"`
	Kind    string   `json:"kind"`
	Storage string   `json:"storage"`
	Value   string   `json:"value"`
	Enabled bool     `json:"enabled"`
	Range   *Range   `json:"range,omitempty"`
	Options []string `json:"options,omitempty"`
}

func (c *Controller) Get(key string) (State, error) {
	s, ok := c.index[key]
	if !ok {
		return State{}, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	return c.state(s), nil
}

// List returns every control in display order.
func (c *Controller) List() []State {
	out := make([]State, 0, len(c.settings))
	for _, s := range c.settings {
		out = append(out, c.state(s))
	}
	return out
}

func (c *Controller) state(s Setting) State {
	ctl, _ := c.session.Control(s.Key)
	st := State{
		Key:     s.Key,
		Kind:    s.Kind.String(),
		Storage: s.Storage.String(),
		Value:   ctl.Value,
		Enabled: ctl.Enabled,
		Range:   s.Range,
	}
	if s.Kind == KindEnum {
		st.Options = enumOptions(s)
	}
	return st
}

func parseValue(s Setting, raw string) (value, error) {
	raw = strings.TrimSpace(raw)
	switch s.Kind {
	case KindBool:
		b, err := parseBool(raw)
		if err != nil {
			return value{}, fmt.Errorf("%w: %s expects a boolean, got %q", ErrInvalidValue, s.Key, raw)
		}
		return value{Bool: b, Text: strconv.FormatBool(b)}, nil
	case KindInt:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return value{}, fmt.Errorf("%w: %s expects an integer, got %q", ErrInvalidValue, s.Key, raw)
		}
		if s.Range != nil {
			i = s.Range.Clamp(i)
		}
		return value{Int: i, Text: strconv.Itoa(i)}, nil
	case KindEnum:
		name := strings.ToLower(raw)
		wire, ok := s.Mapping[name]
		if !ok {
			name = enumName(s, raw)
			wire, ok = s.Mapping[name]
		}
		if !ok {
			return value{}, fmt.Errorf("%w: %s expects one of %v, got %q", ErrInvalidValue, s.Key, enumOptions(s), raw)
		}
		i, _ := strconv.Atoi(wire)
		return value{Int: i, Text: name}, nil
	}
	return value{}, fmt.Errorf("%w: %s", ErrInvalidValue, s.Key)
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// enumName maps an on-wire value back to its name, or returns wire.
func enumName(s Setting, wire string) string {
	for name, w := range s.Mapping {
		if w == wire {
			return name
		}
	}
	return wire
}

func enumOptions(s Setting) []string {
	opts := make([]string, len(s.Mapping))
	for name, w := range s.Mapping {
		i, err := strconv.Atoi(w)
		if err != nil || i < 0 || i >= len(opts) {
			continue
		}
		opts[i] = name
	}
	return opts
}
