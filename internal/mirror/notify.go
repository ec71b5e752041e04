package mirror

import "github.com/rs/zerolog"

// Notifier shows short messages to the user.
type Notifier interface {
	Warn(msg string)
	Info(msg string)
}

// LogNotifier reports user messages through the logger. It is used where
// nobody is watching a terminal, such as the boot hook.
type LogNotifier struct {
	Log *zerolog.Logger
}

func (n LogNotifier) Warn(msg string) {
	if n.Log != nil {
		n.Log.Warn().Str("notice", msg).Msg("user warning")
	}
}

func (n LogNotifier) Info(msg string) {
	if n.Log != nil {
		n.Log.Info().Str("notice", msg).Msg("user notice")
	}
}
