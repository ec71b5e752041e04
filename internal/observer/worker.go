// Package observer implements the auto high-brightness observer: it
// follows the ambient light sensor and drives the HBM file while the
// auto_hbm preference is on.
package observer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kalambet/devsettings/internal/mirror"
	"github.com/kalambet/devsettings/internal/services"
	"github.com/kalambet/devsettings/internal/storage"
	"github.com/kalambet/devsettings/internal/sysfs"
)

// PrefReader abstracts the preference reads the observer needs.
type PrefReader interface {
	GetBool(namespace, key string, def bool) (bool, error)
	GetInt(namespace, key string, def int) (int, error)
}

// Worker polls the light sensor and writes the HBM file on state change.
type Worker struct {
	prefs   PrefReader
	files   *sysfs.Store
	luxPath string
	hbmPath string
	poll    time.Duration
	logger  *zerolog.Logger
	wake    chan struct{}

	enabled   bool
	threshold int
	last      string
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 1s.
func NewWorker(prefs PrefReader, files *sysfs.Store, luxPath, hbmPath string, pollInterval time.Duration, logger *zerolog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Worker{
		prefs:     prefs,
		files:     files,
		luxPath:   luxPath,
		hbmPath:   hbmPath,
		poll:      pollInterval,
		logger:    logger,
		wake:      make(chan struct{}, 1),
		threshold: mirror.DefaultAutoHBMThreshold,
	}
}

// Reregister asks the running worker to reload its preferences before the
// next sample. It never blocks.
func (w *Worker) Reregister(context.Context) error {
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run samples until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if err := w.reload(); err != nil {
		w.logger.Error().Err(err).Msg("loading observer preferences")
	}
	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error().Err(err).Msg("observer iteration failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-w.wake:
			if err := w.reload(); err != nil {
				w.logger.Error().Err(err).Msg("reloading observer preferences")
			}
		case <-time.After(w.poll):
		}
	}
}

func (w *Worker) reload() error {
	ns := storage.DefaultNamespace
	enabled, err := w.prefs.GetBool(ns, mirror.KeyAutoHBM, false)
	if err != nil {
		return fmt.Errorf("reading %s: %w", mirror.KeyAutoHBM, err)
	}
	threshold, err := w.prefs.GetInt(ns, mirror.KeyAutoHBMThreshold, mirror.DefaultAutoHBMThreshold)
	if err != nil {
		return fmt.Errorf("reading %s: %w", mirror.KeyAutoHBMThreshold, err)
	}
	if !enabled {
		// Manual HBM owns the file again.
		w.last = ""
	}
	w.enabled, w.threshold = enabled, threshold
	w.logger.Debug().Bool("enabled", enabled).Int("threshold", threshold).Msg("observer preferences loaded")
	return nil
}

// RunOnce takes one light sample. Returns true if the HBM file was written.
func (w *Worker) RunOnce(context.Context) (bool, error) {
	if !w.enabled {
		return false, nil
	}
	raw := w.files.ReadValue(w.luxPath, "")
	if raw == "" {
		return false, nil
	}
	lux, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false, fmt.Errorf("parsing light sensor value %q: %w", raw, err)
	}

	want := "0"
	if lux > float64(w.threshold) {
		want = "5"
	}
	if want == w.last {
		return false, nil
	}
	if !w.files.WriteValue(w.hbmPath, want) {
		return false, nil
	}
	w.logger.Debug().Float64("lux", lux).Str("hbm", want).Msg("auto HBM changed")
	w.last = want
	return true, nil
}

// ServiceSwitch re-registers by starting or stopping the observer init
// service. It is used by one-shot commands that cannot host the worker.
type ServiceSwitch struct {
	Prefs    PrefReader
	Services services.Controller
	Name     string
}

func (s ServiceSwitch) Reregister(ctx context.Context) error {
	if s.Services == nil || s.Name == "" {
		return nil
	}
	on, err := s.Prefs.GetBool(storage.DefaultNamespace, mirror.KeyAutoHBM, false)
	if err != nil {
		return fmt.Errorf("reading %s: %w", mirror.KeyAutoHBM, err)
	}
	if on {
		return s.Services.Start(ctx, s.Name)
	}
	return s.Services.Stop(ctx, s.Name)
}
