// Package sysfs reads and writes single-line kernel attribute files.
package sysfs

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var defaultLogger = zerolog.Nop()

// Store is a file-backed value store. Writes are not coordinated: two
// writers on the same path race and the last write wins.
type Store struct {
	log *zerolog.Logger
}

// New returns a Store that logs swallowed write errors to logger.
// A nil logger disables logging.
func New(logger *zerolog.Logger) *Store {
	if logger == nil {
		logger = &defaultLogger
	}
	return &Store{log: logger}
}

// ReadValue returns the trimmed contents of path, or def if the file
// cannot be read.
func (s *Store) ReadValue(path, def string) string {
	if path == "" {
		return def
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Trace().Err(err).Str("path", path).Msg("read failed, using default")
		return def
	}
	return strings.TrimSpace(string(data))
}

// WriteValue opens path for writing and writes value. The result reports
// whether the file could be opened for writing at all; a failed write on
// an opened file is logged and still returns true.
func (s *Store) WriteValue(path, value string) bool {
	if path == "" {
		return false
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		s.log.Debug().Err(err).Str("path", path).Msg("device file not writable")
		return false
	}
	defer f.Close()

	if _, err := f.WriteString(value); err != nil {
		s.log.Debug().Err(err).Str("path", path).Str("value", value).Msg("device write failed")
	}
	return true
}

// Writable reports whether path exists and can be opened for writing.
// Nothing is written.
func (s *Store) Writable(path string) bool {
	if path == "" {
		return false
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Exists reports whether path exists.
func (s *Store) Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
