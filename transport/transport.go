// Package transport defines the ceremony message transport capability and
// a reference in-memory implementation of it.
package transport

import (
	"context"
	"time"

	"github.com/andreasbros/frost-btc-state-machine/frost"
)

// Round tags which FROST round a message belongs to.
type Round uint8

const (
	RoundCommitment Round = iota
	RoundShare
)

func (r Round) String() string {
	switch r {
	case RoundCommitment:
		return "commitment"
	case RoundShare:
		return "share"
	default:
		return "unknown"
	}
}

// Message is one ceremony wire message: a session id, the sender's
// participant id, a round tag, and an opaque payload produced by the FROST
// primitives. The transport must preserve per-sender integrity but is not
// required to guarantee ordering across senders, and may deliver
// duplicates; the signer is responsible for deduplication.
type Message struct {
	SessionID uint64
	Sender    frost.ParticipantID
	Round     Round
	Payload   []byte
}

// Transport is the capability a signer and coordinator depend on to
// exchange ceremony messages. Implementations are free to be an in-memory
// queue graph for tests or a real network transport in production; callers
// never distinguish which.
type Transport interface {
	// Send delivers msg to a specific participant, or to every participant
	// other than from if to is nil (broadcast).
	Send(ctx context.Context, from frost.ParticipantID, to *frost.ParticipantID, msg Message) error

	// Recv returns the next message destined for participant, blocking
	// until one arrives, ctx is cancelled, or deadline elapses.
	Recv(ctx context.Context, participant frost.ParticipantID, deadline time.Time) (Message, error)
}
