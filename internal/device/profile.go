// Package device describes the hardware paths and service names of the
// phone being configured.
package device

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed profile.yaml
var defaultProfileYAML []byte

// Profile names every device file and service the mirror touches.
type Profile struct {
	Name            string    `yaml:"name"`
	HighRefreshRate bool      `yaml:"high_refresh_rate"`
	SimSlots        int       `yaml:"sim_slots"`
	Paths           Paths     `yaml:"paths"`
	Vibration       Vibration `yaml:"vibration"`
	Services        Services  `yaml:"services"`

	DolbyComponent     string `yaml:"dolby_component"`
	SetupWizardProcess string `yaml:"setup_wizard_process"`
}

type Paths struct {
	HBM              string `yaml:"hbm"`
	DCDim            string `yaml:"dc_dim"`
	NightMode        string `yaml:"night_mode"`
	VibrationLevel   string `yaml:"vibration_level"`
	VibratorDuration string `yaml:"vibrator_duration"`
	VibratorActivate string `yaml:"vibrator_activate"`
	LightSensor      string `yaml:"light_sensor"`
	SELinuxEnforce   string `yaml:"selinux_enforce"`
	BootID           string `yaml:"boot_id"`
}

// Vibration is the valid strength range of the vibrator level file.
type Vibration struct {
	Min     int `yaml:"min"`
	Max     int `yaml:"max"`
	Default int `yaml:"default"`
}

type Services struct {
	HBM        string `yaml:"hbm"`
	FPSOverlay string `yaml:"fps_overlay"`
	Dolby      string `yaml:"dolby"`
	Observer   string `yaml:"observer"`
}

// Default returns the embedded profile.
func Default() Profile {
	p, err := parse(defaultProfileYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded device profile is invalid: %v", err))
	}
	return p
}

// Load reads a profile from path. Fields missing from the file keep the
// embedded defaults. An empty path returns Default().
func Load(path string) (Profile, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading device profile %s: %w", path, err)
	}
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing device profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("device profile %s: %w", path, err)
	}
	return p, nil
}

func parse(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, err
	}
	return p, p.Validate()
}

// Validate checks ranges that the mirror relies on.
func (p Profile) Validate() error {
	if p.Vibration.Min > p.Vibration.Max {
		return fmt.Errorf("vibration min %d exceeds max %d", p.Vibration.Min, p.Vibration.Max)
	}
	if p.Vibration.Default < p.Vibration.Min || p.Vibration.Default > p.Vibration.Max {
		return fmt.Errorf("vibration default %d outside [%d, %d]", p.Vibration.Default, p.Vibration.Min, p.Vibration.Max)
	}
	if p.SimSlots < 0 {
		return fmt.Errorf("sim_slots must not be negative")
	}
	return nil
}
