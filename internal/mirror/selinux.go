package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kalambet/devsettings/internal/storage"
	"github.com/kalambet/devsettings/internal/sushell"
)

// SELinux restore outcomes reported in Report.SELinux.
const (
	selinuxSkippedSetup = "skipped-setup"
	selinuxUnset        = "unset"
	selinuxUnchanged    = "unchanged"
	selinuxEnforcing    = "enforcing"
	selinuxPermissive   = "permissive"
	selinuxSuDenied     = "su-denied"
	selinuxFailed       = "failed"
)

// restoreSELinux puts the kernel back into the persisted SELinux mode.
func (r *Restorer) restoreSELinux(ctx context.Context) string {
	log := r.deps.Logger
	if name := r.deps.Profile.SetupWizardProcess; name != "" && processRunning(r.deps.ProcRoot, name) {
		log.Debug().Str("process", name).Msg("setup wizard running, leaving SELinux alone")
		return selinuxSkippedSetup
	}

	ok, err := r.deps.Prefs.Contains(storage.SELinuxNamespace, KeySELinuxMode)
	if err != nil {
		log.Warn().Err(err).Msg("reading SELinux preference")
		return selinuxFailed
	}
	if !ok {
		return selinuxUnset
	}

	current := r.deps.Files.ReadValue(r.deps.Profile.Paths.SELinuxEnforce, "1") == "1"
	want, err := r.deps.Prefs.GetBool(storage.SELinuxNamespace, KeySELinuxMode, current)
	if err != nil {
		log.Warn().Err(err).Msg("reading SELinux preference")
		return selinuxFailed
	}
	if want == current {
		return selinuxUnchanged
	}
	if r.deps.Shell == nil {
		r.deps.Notifier.Warn(MsgCannotGetSu)
		return selinuxSuDenied
	}

	mode := 0
	if want {
		mode = 1
	}
	if _, err := r.deps.Shell.Run(ctx, "setenforce "+strconv.Itoa(mode)); err != nil {
		if errors.Is(err, sushell.ErrSuDenied) {
			r.deps.Notifier.Warn(MsgCannotGetSu)
			return selinuxSuDenied
		}
		log.Warn().Err(err).Msg("setenforce failed")
		return selinuxFailed
	}

	if want {
		r.deps.Notifier.Info(MsgSELinuxEnforcing)
		return selinuxEnforcing
	}
	r.deps.Notifier.Info(MsgSELinuxPermissive)
	return selinuxPermissive
}

// processRunning reports whether any process under procRoot has name as
// its command line's first argument.
func processRunning(procRoot, name string) bool {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(procRoot, e.Name(), "cmdline"))
		if err != nil || len(raw) == 0 {
			continue
		}
		argv0, _, _ := bytes.Cut(raw, []byte{0})
		if string(argv0) == name {
			return true
		}
	}
	return false
}

// SetSELinuxMode records the SELinux mode to restore on the next boot.
func (c *Controller) SetSELinuxMode(enforcing bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.deps.Prefs.SetBool(storage.SELinuxNamespace, KeySELinuxMode, enforcing); err != nil {
		return fmt.Errorf("persisting %s: %w", KeySELinuxMode, err)
	}
	return nil
}
