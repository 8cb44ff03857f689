// Package errs defines the error kinds shared across the ceremony, key
// material, and Taproot packages. Each kind is a sentinel that callers can
// match with errors.Is; the concrete error always wraps a descriptive cause
// so logs keep the detail that errors.Is discards.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel kinds. These never carry data themselves; wrap them with Wrap or
// one of the constructors below to attach a message and participant context.
var (
	// ErrInvalidParameters covers threshold/party-count/amount/fee values
	// out of range. Fatal, reported straight to the caller.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrCorrupt covers a malformed key file or a deserialization failure.
	ErrCorrupt = errors.New("corrupt data")

	// ErrProtocol covers an unexpected round, a duplicate sender with a
	// divergent payload, or a share that fails verification. Terminates
	// the ceremony.
	ErrProtocol = errors.New("protocol violation")

	// ErrTimeout covers a round deadline elapsing before the threshold
	// was reached.
	ErrTimeout = errors.New("ceremony timeout")

	// ErrTransport covers node RPC or in-process transport failure.
	ErrTransport = errors.New("transport error")

	// ErrInvalidSignature covers the aggregated signature failing final
	// verification. Indicates a programmer error upstream.
	ErrInvalidSignature = errors.New("invalid aggregated signature")

	// ErrCancelled marks a goroutine torn down because a sibling signer
	// failed. Suppressed from the caller except as a secondary cause.
	ErrCancelled = errors.New("cancelled")

	// ErrNotFound covers a node RPC lookup for a UTXO that doesn't exist
	// or has already been spent.
	ErrNotFound = errors.New("not found")

	// ErrRejected covers a broadcast the node refused to relay.
	ErrRejected = errors.New("rejected")
)

// RejectedError carries the node's stated reason for refusing to relay a
// broadcast transaction.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "rejected: " + e.Reason }
func (e *RejectedError) Unwrap() error { return ErrRejected }

// NewRejected builds a *RejectedError carrying the node's stated reason.
func NewRejected(reason string) error {
	return &RejectedError{Reason: reason}
}

// ProtocolError names the participant responsible for a protocol violation,
// so a coordinator log line can point a finger without a caller having to
// parse a message string.
type ProtocolError struct {
	Participant uint16
	Reason      string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("participant %d: %s", e.Participant, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}

// NewProtocol builds a *ProtocolError naming the offending participant.
func NewProtocol(participant uint16, reason string) error {
	return &ProtocolError{Participant: participant, Reason: reason}
}

// Wrap attaches msg to kind so %w-chains keep both the sentinel and the
// human-readable cause.
func Wrap(kind error, msg string) error {
	return fmt.Errorf("%s: %w", msg, kind)
}

// Wrapf is Wrap with formatting.
func Wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
