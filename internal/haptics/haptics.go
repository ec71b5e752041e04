// Package haptics drives the LED-class vibrator exposed in sysfs.
package haptics

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kalambet/devsettings/internal/sysfs"
)

// TestPulse is the short buzz fired after a strength change: no delay,
// then 5ms on.
var TestPulse = []time.Duration{0, 5 * time.Millisecond}

// Vibrator plays an off/on waveform. Even indices are off durations and
// odd indices are on durations.
type Vibrator interface {
	Vibrate(ctx context.Context, pattern []time.Duration) error
}

// LEDVibrator writes duration then activate for each on segment.
type LEDVibrator struct {
	durationPath string
	activatePath string
	files        *sysfs.Store
	log          *zerolog.Logger
	sleep        func(context.Context, time.Duration) error
}

func NewLEDVibrator(durationPath, activatePath string, files *sysfs.Store, logger *zerolog.Logger) *LEDVibrator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LEDVibrator{
		durationPath: durationPath,
		activatePath: activatePath,
		files:        files,
		log:          logger,
		sleep:        sleepCtx,
	}
}

func (v *LEDVibrator) Vibrate(ctx context.Context, pattern []time.Duration) error {
	for i, d := range pattern {
		if i%2 == 0 {
			if err := v.sleep(ctx, d); err != nil {
				return err
			}
			continue
		}
		if d <= 0 {
			continue
		}
		ms := strconv.FormatInt(d.Milliseconds(), 10)
		if !v.files.WriteValue(v.durationPath, ms) {
			v.log.Debug().Str("path", v.durationPath).Msg("vibrator duration not writable")
			return nil
		}
		v.files.WriteValue(v.activatePath, "1")
		if err := v.sleep(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
