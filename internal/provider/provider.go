// Package provider reads and writes OS-wide settings-provider keys.
package provider

import (
	"context"
	"fmt"
	"strconv"
)

// Namespace is a settings-provider table.
type Namespace string

const (
	System Namespace = "system"
	Global Namespace = "global"
	Secure Namespace = "secure"
)

// Well-known keys.
const (
	KeyPeakRefreshRate  = "peak_refresh_rate"
	KeyMinRefreshRate   = "min_refresh_rate"
	KeyAutoRefreshRate  = "auto_refresh_rate"
	KeyNrDisableMode    = "nr_disable_mode"
	KeyDefaultDataSubID = "multi_sim_data_call"
)

// Provider abstracts the settings provider. Values are strings on the wire;
// typed accessors live in this package as helpers.
type Provider interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, ns Namespace, key string) (string, bool, error)
	Put(ctx context.Context, ns Namespace, key, value string) error
}

// GetFloat returns the float value of key, or def when the key is absent
// or not a float.
func GetFloat(ctx context.Context, p Provider, ns Namespace, key string, def float64) (float64, error) {
	raw, ok, err := p.Get(ctx, ns, key)
	if err != nil {
		return def, fmt.Errorf("reading %s/%s: %w", ns, key, err)
	}
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def, nil
	}
	return f, nil
}

func PutFloat(ctx context.Context, p Provider, ns Namespace, key string, v float64) error {
	return p.Put(ctx, ns, key, strconv.FormatFloat(v, 'f', 1, 64))
}

// GetInt returns the integer value of key, or def when the key is absent
// or not an integer.
func GetInt(ctx context.Context, p Provider, ns Namespace, key string, def int) (int, error) {
	raw, ok, err := p.Get(ctx, ns, key)
	if err != nil {
		return def, fmt.Errorf("reading %s/%s: %w", ns, key, err)
	}
	if !ok {
		return def, nil
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return def, nil
	}
	return i, nil
}

func PutInt(ctx context.Context, p Provider, ns Namespace, key string, v int) error {
	return p.Put(ctx, ns, key, strconv.Itoa(v))
}
