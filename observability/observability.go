// Package observability wires the ceremony's structured logging and counter
// registration. A ceremony runs under a span keyed by session id; each
// signer's operations run under a nested span keyed by participant id. No
// secret material is ever passed to a log field or to any counter label.
package observability

import (
	"go.uber.org/zap"
)

// Logger is the process-wide structured logger. Callers outside this
// package should treat it as the root from which CeremonySpan derives nested
// loggers; nothing here owns a *zap.Logger singleton beyond this variable.
var Logger *zap.Logger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	Logger = l
}

// SetLogger overrides the process-wide logger, e.g. so a caller can install
// a development logger or a nop logger. A nil logger is ignored.
func SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	Logger = l
}

// CeremonySpan returns a logger scoped to one ceremony, tagged with its
// session id. Every log line emitted through the returned logger carries
// the session_id field without the caller repeating it.
func CeremonySpan(sessionID uint64) *zap.Logger {
	return Logger.With(zap.Uint64("session_id", sessionID))
}

// SignerSpan narrows a ceremony span further to one participant.
func SignerSpan(span *zap.Logger, participant uint16) *zap.Logger {
	return span.With(zap.Uint16("participant_id", participant))
}
