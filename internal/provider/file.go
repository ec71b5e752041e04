package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File stores provider values as a flat JSON object keyed "namespace/key".
// It stands in for the OS provider when running off-device.
type File struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// NewFile loads path if it exists. A missing file starts empty.
func NewFile(path string) (*File, error) {
	f := &File{path: path, data: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("reading provider file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &f.data); err != nil {
		return nil, fmt.Errorf("parsing provider file %s: %w", path, err)
	}
	return f, nil
}

func fileKey(ns Namespace, key string) string {
	return string(ns) + "/" + key
}

func (f *File) Get(_ context.Context, ns Namespace, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[fileKey(ns, key)]
	return v, ok, nil
}

func (f *File) Put(_ context.Context, ns Namespace, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[fileKey(ns, key)] = value
	return f.save()
}

func (f *File) save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating provider dir: %w", err)
	}
	data, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

// Memory is an in-process Provider used by tests and dry runs.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, ns Namespace, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[fileKey(ns, key)]
	return v, ok, nil
}

func (m *Memory) Put(_ context.Context, ns Namespace, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[fileKey(ns, key)] = value
	return nil
}
