// Package notify is the user-feedback boundary of the engine. The engine only
// ever fires notifications and never waits on them; a UI layer plugs in its
// own implementation.
package notify

import "github.com/rs/zerolog"

// Notifier delivers user-facing feedback. All methods are fire-and-forget.
type Notifier interface {
	// ShowAlert surfaces a blocking error the user must acknowledge.
	ShowAlert(title, message string)
	// ShowToast surfaces a transient, non-blocking message.
	ShowToast(message string)
	// SendPush requests a local push notification (used when the app is
	// backgrounded).
	SendPush(title, body string)
}

// LogNotifier writes notifications to the structured log. It is the default
// sink in headless runs and tests.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a notifier backed by log.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) ShowAlert(title, message string) {
	n.log.Warn().Str("title", title).Str("message", message).Msg("alert")
}

func (n *LogNotifier) ShowToast(message string) {
	n.log.Info().Str("message", message).Msg("toast")
}

func (n *LogNotifier) SendPush(title, body string) {
	n.log.Info().Str("title", title).Str("body", body).Msg("push")
}

var _ Notifier = (*LogNotifier)(nil)
