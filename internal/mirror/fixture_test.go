package mirror

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalambet/devsettings/internal/device"
	"github.com/kalambet/devsettings/internal/provider"
	"github.com/kalambet/devsettings/internal/radio"
	"github.com/kalambet/devsettings/internal/services"
	"github.com/kalambet/devsettings/internal/storage"
	"github.com/kalambet/devsettings/internal/sushell"
	"github.com/kalambet/devsettings/internal/sysfs"
	"github.com/kalambet/devsettings/internal/tasks"
)

type recordingNotifier struct {
	warnings []string
	infos    []string
}

func (n *recordingNotifier) Warn(msg string) { n.warnings = append(n.warnings, msg) }
func (n *recordingNotifier) Info(msg string) { n.infos = append(n.infos, msg) }

type fakeVibrator struct{ patterns [][]time.Duration }

func (v *fakeVibrator) Vibrate(_ context.Context, p []time.Duration) error {
	v.patterns = append(v.patterns, p)
	return nil
}

type fakeObserver struct{ calls int }

func (o *fakeObserver) Reregister(context.Context) error {
	o.calls++
	return nil
}

type fakeSlots struct {
	slot int
	err  error
}

func (s fakeSlots) DefaultDataSlot(context.Context) (int, error) { return s.slot, s.err }

type nrCall struct {
	slot int
	mode radio.NrMode
}

type fakeTunnel struct {
	mu    sync.Mutex
	calls []nrCall
}

func (t *fakeTunnel) SetNrMode(_ context.Context, slot int, mode radio.NrMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, nrCall{slot, mode})
	return nil
}

// fakeScheduler records submissions and runs nothing until Drain.
type fakeScheduler struct {
	names []string
	fns   []tasks.Func
}

func (s *fakeScheduler) Submit(name string, fn tasks.Func) *tasks.Handle {
	s.names = append(s.names, name)
	s.fns = append(s.fns, fn)
	return tasks.NewHandle(name, nil)
}

func (s *fakeScheduler) Drain(ctx context.Context) {
	for _, fn := range s.fns {
		_ = fn(ctx)
	}
	s.fns = nil
}

type fakeShell struct {
	commands []string
	err      error
}

func (s *fakeShell) Run(_ context.Context, command string) (string, error) {
	s.commands = append(s.commands, command)
	return "", s.err
}

var _ sushell.Runner = (*fakeShell)(nil)

type fixture struct {
	dir      string
	store    *storage.Store
	prov     *provider.Memory
	files    *sysfs.Store
	svc      *services.Recorder
	vib      *fakeVibrator
	obs      *fakeObserver
	notes    *recordingNotifier
	sched    *fakeScheduler
	shell    *fakeShell
	binding  *radio.Binding
	profile  device.Profile
	procRoot string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	p := device.Default()
	p.Paths = device.Paths{
		HBM:              filepath.Join(dir, "hbm"),
		DCDim:            filepath.Join(dir, "dc_dim"),
		NightMode:        filepath.Join(dir, "night_mode"),
		VibrationLevel:   filepath.Join(dir, "vib_level"),
		VibratorDuration: filepath.Join(dir, "vib_duration"),
		VibratorActivate: filepath.Join(dir, "vib_activate"),
		LightSensor:      filepath.Join(dir, "lux"),
		SELinuxEnforce:   filepath.Join(dir, "enforce"),
		BootID:           filepath.Join(dir, "boot_id"),
	}
	for path, content := range map[string]string{
		p.Paths.HBM:            "0\n",
		p.Paths.DCDim:          "0\n",
		p.Paths.NightMode:      "0\n",
		p.Paths.VibrationLevel: "3\n",
		p.Paths.SELinuxEnforce: "1\n",
		p.Paths.BootID:         "boot-1\n",
	} {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	procRoot := filepath.Join(dir, "proc")
	require.NoError(t, os.MkdirAll(procRoot, 0o755))

	return &fixture{
		dir:      dir,
		store:    store,
		prov:     provider.NewMemory(),
		files:    sysfs.New(nil),
		svc:      services.NewRecorder(),
		vib:      &fakeVibrator{},
		obs:      &fakeObserver{},
		notes:    &recordingNotifier{},
		sched:    &fakeScheduler{},
		shell:    &fakeShell{},
		binding:  &radio.Binding{},
		profile:  p,
		procRoot: procRoot,
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Profile:  f.profile,
		Prefs:    f.store,
		Boots:    f.store,
		Provider: f.prov,
		Files:    f.files,
		Services: f.svc,
		Vibrator: f.vib,
		Radio:    f.binding,
		Slots:    fakeSlots{slot: 0},
		Tasks:    f.sched,
		Observer: f.obs,
		Shell:    f.shell,
		Notifier: f.notes,
		ProcRoot: f.procRoot,
	}
}

func (f *fixture) open(t *testing.T) *Controller {
	t.Helper()
	c, err := Open(context.Background(), f.deps())
	require.NoError(t, err)
	return c
}

func (f *fixture) read(path string) string {
	return f.files.ReadValue(path, "<missing>")
}

func (f *fixture) startProcess(t *testing.T, pid, cmdline string) {
	t.Helper()
	dir := filepath.Join(f.procRoot, pid)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte(cmdline+"\x00"), 0o644))
}
