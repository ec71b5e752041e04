package mirror

import "sync"

// Control is the bound state of one setting within a session.
type Control struct {
	Value   string
	Enabled bool
}

// Session holds the current value and enabled state of every control.
// It is created by Open and shared by the controller and the restorer.
type Session struct {
	mu       sync.RWMutex
	controls map[string]Control
}

func NewSession() *Session {
	return &Session{controls: make(map[string]Control)}
}

func (s *Session) Control(key string) (Control, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controls[key]
	return c, ok
}

func (s *Session) Bind(key, value string, enabled bool) {
	s.mu.Lock()
	s.controls[key] = Control{Value: value, Enabled: enabled}
	s.mu.Unlock()
}

func (s *Session) SetValue(key, value string) {
	s.mu.Lock()
	c := s.controls[key]
	c.Value = value
	s.controls[key] = c
	s.mu.Unlock()
}

func (s *Session) SetEnabled(key string, enabled bool) {
	s.mu.Lock()
	c := s.controls[key]
	c.Enabled = enabled
	s.controls[key] = c
	s.mu.Unlock()
}

// Enabled reports false for keys that were never bound.
func (s *Session) Enabled(key string) bool {
	c, ok := s.Control(key)
	return ok && c.Enabled
}
