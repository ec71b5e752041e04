package mirror

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kalambet/devsettings/internal/device"
	"github.com/kalambet/devsettings/internal/storage"
)

// RestoreKind is what a boot step does when its preference is on.
type RestoreKind int

const (
	RestoreWriteFile RestoreKind = iota
	RestoreStartService
)

// BootStep restores one persisted boolean. Steps whose preference is
// false are skipped; nothing is zeroed.
type BootStep struct {
	Key    string
	Kind   RestoreKind
	Target string // device path or service name
	Value  string // written when Kind is RestoreWriteFile
}

// DefaultBootList is the ordered restore list for p.
func DefaultBootList(p device.Profile) []BootStep {
	return []BootStep{
		{Key: KeyHBM, Kind: RestoreWriteFile, Target: p.Paths.HBM, Value: hbmMapping["true"]},
		{Key: KeyDCSwitch, Kind: RestoreWriteFile, Target: p.Paths.DCDim, Value: switchMapping["true"]},
		{Key: KeyNightSwitch, Kind: RestoreWriteFile, Target: p.Paths.NightMode, Value: switchMapping["true"]},
		{Key: KeyFPSInfo, Kind: RestoreStartService, Target: p.Services.FPSOverlay},
	}
}

// RestoreState is the restorer's position in its one-shot lifecycle.
type RestoreState int

const (
	NotRun RestoreState = iota
	Ran
)

func (s RestoreState) String() string {
	if s == Ran {
		return "ran"
	}
	return "not-run"
}

// Report describes one restore pass.
type Report struct {
	BootID    string   `json:"boot_id,omitempty"`
	Applied   []string `json:"applied"`
	Skipped   []string `json:"skipped"`
	SELinux   string   `json:"selinux"`
	Vibration string   `json:"vibration,omitempty"`
	Forced    bool     `json:"forced"`
}

func (r Report) Summary() string {
	parts := []string{"applied=" + strings.Join(r.Applied, ",")}
	if r.SELinux != "" {
		parts = append(parts, "selinux="+r.SELinux)
	}
	if r.Vibration != "" {
		parts = append(parts, "vib="+r.Vibration)
	}
	return strings.Join(parts, " ")
}

// Restorer replays persisted state onto the device once per boot.
type Restorer struct {
	deps    Deps
	session *Session
	steps   []BootStep

	mu    sync.Mutex
	state RestoreState
}

// NewRestorer returns a restorer over deps. session may be nil; when set,
// a vibration control disabled at Open is not re-issued.
func NewRestorer(deps Deps, session *Session) *Restorer {
	deps.fill()
	return &Restorer{
		deps:    deps,
		session: session,
		steps:   DefaultBootList(deps.Profile),
	}
}

func (r *Restorer) State() RestoreState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Restore runs the boot list, the SELinux restore, the vibration re-issue
// and observer re-registration, in that order. Without force it returns
// ErrAlreadyRestored when this restorer or the boot log has already seen
// the current boot.
func (r *Restorer) Restore(ctx context.Context, force bool) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.deps.Logger
	report := Report{Forced: force}

	if r.state == Ran && !force {
		return report, ErrAlreadyRestored
	}

	report.BootID = r.deps.Files.ReadValue(r.deps.Profile.Paths.BootID, "")
	if report.BootID != "" && r.deps.Boots != nil {
		if force {
			if err := r.deps.Boots.ForgetBoot(report.BootID); err != nil {
				return report, fmt.Errorf("clearing boot record: %w", err)
			}
		} else {
			_, err := r.deps.Boots.GetBootRun(report.BootID)
			if err == nil {
				r.state = Ran
				return report, ErrAlreadyRestored
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return report, fmt.Errorf("reading boot record: %w", err)
			}
		}
	}

	for _, step := range r.steps {
		on, err := r.deps.Prefs.GetBool(storage.DefaultNamespace, step.Key, false)
		if err != nil {
			log.Warn().Err(err).Str("key", step.Key).Msg("reading preference for restore")
			report.Skipped = append(report.Skipped, step.Key)
			continue
		}
		if !on {
			report.Skipped = append(report.Skipped, step.Key)
			continue
		}
		r.apply(ctx, step)
		report.Applied = append(report.Applied, step.Key)
	}

	report.SELinux = r.restoreSELinux(ctx)
	report.Vibration = r.reissueVibration()

	if r.deps.Observer != nil {
		if err := r.deps.Observer.Reregister(ctx); err != nil {
			log.Warn().Err(err).Msg("re-registering settings observer")
		}
	}

	r.state = Ran
	if report.BootID != "" && r.deps.Boots != nil {
		if _, err := r.deps.Boots.RecordBoot(report.BootID, report.Summary()); err != nil {
			return report, fmt.Errorf("recording boot: %w", err)
		}
	}
	log.Info().Str("boot_id", report.BootID).Strs("applied", report.Applied).Str("selinux", report.SELinux).Msg("boot restore complete")
	return report, nil
}

func (r *Restorer) apply(ctx context.Context, step BootStep) {
	switch step.Kind {
	case RestoreWriteFile:
		if !r.deps.Files.WriteValue(step.Target, step.Value) {
			r.deps.Logger.Debug().Str("path", step.Target).Str("key", step.Key).Msg("restore target not writable")
		}
	case RestoreStartService:
		if r.deps.Services == nil || step.Target == "" {
			return
		}
		if err := r.deps.Services.Start(ctx, step.Target); err != nil {
			r.deps.Logger.Warn().Err(err).Str("service", step.Target).Msg("starting service on boot")
		}
	}
}

// reissueVibration writes the persisted strength back to the level file and
// returns the value written, or "" when the control is unavailable.
func (r *Restorer) reissueVibration() string {
	path := r.deps.Profile.Paths.VibrationLevel
	if r.session != nil {
		if c, ok := r.session.Control(KeyVibStrength); ok && !c.Enabled {
			return ""
		}
	}
	if !r.deps.Files.Writable(path) {
		return ""
	}
	def, err := strconv.Atoi(r.deps.Files.ReadValue(path, strconv.Itoa(r.deps.Profile.Vibration.Default)))
	if err != nil {
		def = r.deps.Profile.Vibration.Default
	}
	v, err := r.deps.Prefs.GetInt(storage.DefaultNamespace, KeyVibStrength, def)
	if err != nil {
		r.deps.Logger.Warn().Err(err).Msg("reading vibration strength")
		v = def
	}
	s := strconv.Itoa(v)
	r.deps.Files.WriteValue(path, s)
	return s
}
