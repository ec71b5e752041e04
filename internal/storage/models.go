package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Preference namespaces. DefaultNamespace holds the toggle values;
// SELinuxNamespace is kept apart so clearing toggles never touches it.
const (
	DefaultNamespace = "default"
	SELinuxNamespace = "selinux_pref"
)

type Preference struct {
	Namespace string
	Key       string
	Value     string
	UpdatedAt time.Time
}

type BootRun struct {
	BootID     string
	RestoredAt time.Time
	Summary    string
}
