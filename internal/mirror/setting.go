package mirror

import (
	"strconv"

	"github.com/kalambet/devsettings/internal/device"
)

// Preference keys.
const (
	KeyHBM              = "hbm"
	KeyAutoHBM          = "auto_hbm"
	KeyAutoHBMThreshold = "auto_hbm_threshold"
	KeyRefreshRate      = "refresh_rate"
	KeyAutoRefreshRate  = "auto_refresh_rate"
	KeyFPSInfo          = "fps_info"
	KeyVibStrength      = "vib_strength"
	KeyDCSwitch         = "dc_switch"
	KeyNightSwitch      = "night_switch"
	KeyDolbyAtmos       = "enable_dolby_atmos"
	KeyNrMode           = "nr_mode_switcher"

	KeySELinuxMode = "selinux_mode"
)

// DefaultAutoHBMThreshold is the lux level above which auto HBM engages.
const DefaultAutoHBMThreshold = 20000

type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindEnum:
		return "enum"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Storage names the store that holds the mirrored representation.
type Storage int

const (
	StoragePreference Storage = iota
	StorageProvider
	StorageDeviceFile
)

func (s Storage) String() string {
	switch s {
	case StoragePreference:
		return "preference"
	case StorageProvider:
		return "provider"
	case StorageDeviceFile:
		return "device-file"
	default:
		return "storage(" + strconv.Itoa(int(s)) + ")"
	}
}

// Range is an inclusive integer interval.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r Range) Clamp(v int) int {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Setting describes one named toggle. Mapping translates the canonical
// value ("true", "false", or an enum name) to its on-wire form.
type Setting struct {
	Key        string
	Kind       Kind
	Storage    Storage
	DevicePath string
	Range      *Range
	Mapping    map[string]string
	Default    string
}

// Encode returns the on-wire representation of a canonical value.
func (s Setting) Encode(value string) string {
	if w, ok := s.Mapping[value]; ok {
		return w
	}
	return value
}

var (
	hbmMapping    = map[string]string{"true": "5", "false": "0"}
	switchMapping = map[string]string{"true": "1", "false": "0"}
	nrMapping     = map[string]string{"none": "0", "sa": "1", "nsa": "2"}
)

// Registry returns the settings available on p in display order.
func Registry(p device.Profile) []Setting {
	settings := []Setting{
		{Key: KeyHBM, Kind: KindBool, Storage: StorageDeviceFile, DevicePath: p.Paths.HBM, Mapping: hbmMapping, Default: "false"},
		{Key: KeyAutoHBM, Kind: KindBool, Storage: StoragePreference, Default: "false"},
		{Key: KeyAutoHBMThreshold, Kind: KindInt, Storage: StoragePreference, Range: &Range{Min: 0, Max: 100000}, Default: strconv.Itoa(DefaultAutoHBMThreshold)},
	}
	if p.HighRefreshRate {
		settings = append(settings,
			Setting{Key: KeyRefreshRate, Kind: KindBool, Storage: StorageProvider, Default: "false"},
			Setting{Key: KeyAutoRefreshRate, Kind: KindBool, Storage: StorageProvider, Default: "false"},
		)
	}
	settings = append(settings,
		Setting{Key: KeyFPSInfo, Kind: KindBool, Storage: StoragePreference, Default: "false"},
		Setting{
			Key:        KeyVibStrength,
			Kind:       KindInt,
			Storage:    StorageDeviceFile,
			DevicePath: p.Paths.VibrationLevel,
			Range:      &Range{Min: p.Vibration.Min, Max: p.Vibration.Max},
			Default:    strconv.Itoa(p.Vibration.Default),
		},
		Setting{Key: KeyDCSwitch, Kind: KindBool, Storage: StorageDeviceFile, DevicePath: p.Paths.DCDim, Mapping: switchMapping, Default: "false"},
		Setting{Key: KeyNightSwitch, Kind: KindBool, Storage: StorageDeviceFile, DevicePath: p.Paths.NightMode, Mapping: switchMapping, Default: "false"},
		Setting{Key: KeyDolbyAtmos, Kind: KindBool, Storage: StoragePreference, Default: "false"},
		Setting{Key: KeyNrMode, Kind: KindEnum, Storage: StorageProvider, Mapping: nrMapping, Default: "none"},
	)
	return settings
}
