// Package signer implements the per-participant FROST protocol state
// machine: Idle, CollectingCommitments, CollectingShares, Complete, Failed.
package signer

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andreasbros/frost-btc-state-machine/errs"
	"github.com/andreasbros/frost-btc-state-machine/frost"
	"github.com/andreasbros/frost-btc-state-machine/keys"
	"github.com/andreasbros/frost-btc-state-machine/observability"
	"github.com/andreasbros/frost-btc-state-machine/transport"
)

// State is the signer's current protocol state.
type State uint8

const (
	StateIdle State = iota
	StateCollectingCommitments
	StateCollectingShares
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollectingCommitments:
		return "collecting_commitments"
	case StateCollectingShares:
		return "collecting_shares"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureKind distinguishes why a signer landed in StateFailed.
type FailureKind uint8

const (
	FailureNone FailureKind = iota
	FailureTimeout
	FailureProtocol
	FailureCancelled
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureProtocol:
		return "protocol"
	case FailureCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// Signer drives one participant's side of one signing session. Bound to
// exactly one session at a time; call Reset to return to Idle.
type Signer struct {
	mu  sync.Mutex
	id  frost.ParticipantID
	pkg *keys.Package
	tr  transport.Transport
	span *zap.Logger

	state   State
	failure FailureKind
	err     error

	sessionID    uint64
	threshold    int
	roundTimeout time.Duration
	roundDeadline time.Time
	message      [32]byte

	nonces        frost.NoncePair
	commitments   map[frost.ParticipantID]frost.NonceCommitment
	commitmentRaw map[frost.ParticipantID][]byte
	shares        map[frost.ParticipantID]frost.SignatureShare
	shareRaw      map[frost.ParticipantID][]byte
	pendingShares []transport.Message

	signingPackage *frost.SigningPackage
	tweak          frost.TweakedKey
	signature      frost.Signature
}

// New constructs a signer for id, backed by its key package and a shared
// transport. The signer starts Idle.
func New(id frost.ParticipantID, pkg *keys.Package, tr transport.Transport) *Signer {
	return &Signer{id: id, pkg: pkg, tr: tr, span: observability.Logger, state: StateIdle}
}

// SetSpan overrides the logger the signer emits under, normally a
// per-participant child span handed to it by the coordinator.
func (s *Signer) SetSpan(span *zap.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.span = span
}

// State returns the signer's current state.
func (s *Signer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that terminated the session, if any.
func (s *Signer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Signature returns the aggregated signature and true once Complete.
func (s *Signer) Signature() (frost.Signature, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signature, s.state == StateComplete
}

// NonceZero reports whether the signer's current nonce pair is zeroized,
// used by tests to assert nonce hygiene after a ceremony ends.
func (s *Signer) NonceZero() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonces.IsZero()
}

// Reset returns a terminal signer to Idle so it may join another session.
func (s *Signer) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete && s.state != StateFailed {
		return errs.Wrap(errs.ErrProtocol, "cannot reset: ceremony in progress")
	}
	s.nonces.Zeroize()
	s.state = StateIdle
	s.failure = FailureNone
	s.err = nil
	s.sessionID = 0
	s.threshold = 0
	s.roundTimeout = 0
	s.roundDeadline = time.Time{}
	s.message = [32]byte{}
	s.nonces = frost.NoncePair{}
	s.commitments = nil
	s.commitmentRaw = nil
	s.shares = nil
	s.shareRaw = nil
	s.pendingShares = nil
	s.signingPackage = nil
	s.tweak = frost.TweakedKey{}
	s.signature = frost.Signature{}
	return nil
}

// InitiateSigning moves the signer from Idle to CollectingCommitments: it
// draws a fresh nonce pair, adds its own commitment to the accumulator, and
// broadcasts it. Rejects if the signer is not Idle.
func (s *Signer) InitiateSigning(ctx context.Context, sessionID uint64, threshold int, participants []frost.ParticipantID, message [32]byte, roundTimeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return errs.Wrap(errs.ErrProtocol, "signer is not in idle state")
	}

	nonces, commitment, err := frost.GenerateNoncePair(rand.Reader)
	if err != nil {
		return errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}

	s.sessionID = sessionID
	s.threshold = threshold
	s.roundTimeout = roundTimeout
	s.roundDeadline = time.Now().Add(roundTimeout)
	s.message = message
	s.nonces = nonces
	s.tweak = frost.ComputeTweak(s.pkg.Public.GroupPublicKey)
	s.commitments = map[frost.ParticipantID]frost.NonceCommitment{s.id: commitment}
	s.commitmentRaw = map[frost.ParticipantID][]byte{s.id: encodeCommitment(commitment)}
	s.shares = map[frost.ParticipantID]frost.SignatureShare{}
	s.shareRaw = map[frost.ParticipantID][]byte{}
	s.state = StateCollectingCommitments

	payload := encodeCommitment(commitment)
	if err := s.tr.Send(ctx, s.id, nil, transport.Message{SessionID: sessionID, Sender: s.id, Round: transport.RoundCommitment, Payload: payload}); err != nil {
		return s.failLocked(FailureProtocol, errs.Wrap(errs.ErrTransport, err.Error()))
	}

	if s.span != nil {
		s.span.Info("initiated signing round", zap.Int("threshold", threshold), zap.Int("participants", len(participants)))
	}

	if len(s.commitments) >= s.threshold {
		return s.tryAdvanceToRound2Locked(ctx)
	}
	return nil
}

// ProcessMessage feeds one transport message through the state machine. A
// message whose session id does not match is dropped silently, per the
// isolation invariant.
func (s *Signer) ProcessMessage(ctx context.Context, msg transport.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateComplete || s.state == StateFailed {
		return nil
	}
	if msg.SessionID != s.sessionID {
		return nil
	}

	switch msg.Round {
	case transport.RoundCommitment:
		return s.processCommitmentLocked(ctx, msg)
	case transport.RoundShare:
		return s.processShareLocked(ctx, msg)
	default:
		return s.failLocked(FailureProtocol, errs.NewProtocol(uint16(msg.Sender), "unknown round tag"))
	}
}

func (s *Signer) processCommitmentLocked(ctx context.Context, msg transport.Message) error {
	if s.state == StateCollectingShares {
		return nil // additional commitments after the transition are ignored
	}
	if s.state != StateCollectingCommitments {
		return s.failLocked(FailureProtocol, errs.NewProtocol(uint16(msg.Sender), "commitment received outside round 1"))
	}

	if existing, ok := s.commitmentRaw[msg.Sender]; ok {
		if !bytes.Equal(existing, msg.Payload) {
			return s.failLocked(FailureProtocol, errs.NewProtocol(uint16(msg.Sender), "duplicate commitment with divergent payload"))
		}
		return nil
	}

	commitment, err := decodeCommitment(msg.Payload)
	if err != nil {
		return s.failLocked(FailureProtocol, errs.NewProtocol(uint16(msg.Sender), err.Error()))
	}

	s.commitments[msg.Sender] = commitment
	s.commitmentRaw[msg.Sender] = append([]byte(nil), msg.Payload...)
	observability.NonceCommitmentReceived.Inc()

	if len(s.commitments) >= s.threshold {
		return s.tryAdvanceToRound2Locked(ctx)
	}
	return nil
}

// tryAdvanceToRound2Locked builds the deterministic, sorted signing package
// from the t commitments present, emits this signer's own Round-2 share,
// broadcasts it, and replays any Round-2 messages that arrived early.
func (s *Signer) tryAdvanceToRound2Locked(ctx context.Context) error {
	sp := frost.NewSigningPackage(s.message, s.commitments)
	s.signingPackage = sp

	share, err := frost.SignShare(s.id, s.pkg.SigningShare, &s.nonces, sp, s.tweak)
	if err != nil {
		return s.failLocked(FailureProtocol, errs.Wrap(errs.ErrProtocol, err.Error()))
	}
	s.nonces.Zeroize() // single-use: the share is computed, the nonces are spent
	s.shares[s.id] = share
	s.shareRaw[s.id] = encodeShare(share)
	s.state = StateCollectingShares
	s.roundDeadline = time.Now().Add(s.roundTimeout)

	payload := encodeShare(share)
	if err := s.tr.Send(ctx, s.id, nil, transport.Message{SessionID: s.sessionID, Sender: s.id, Round: transport.RoundShare, Payload: payload}); err != nil {
		return s.failLocked(FailureProtocol, errs.Wrap(errs.ErrTransport, err.Error()))
	}

	buffered := s.pendingShares
	s.pendingShares = nil
	for _, m := range buffered {
		if err := s.processShareLocked(ctx, m); err != nil {
			return err
		}
		if s.state != StateCollectingShares {
			break
		}
	}

	if s.state == StateCollectingShares && len(s.shares) >= s.threshold {
		return s.completeLocked()
	}
	return nil
}

func (s *Signer) processShareLocked(ctx context.Context, msg transport.Message) error {
	if s.state == StateCollectingCommitments {
		// this signer hasn't reached round 2 yet; a faster peer's share
		// arrived early. Buffer it for replay once we transition.
		s.pendingShares = append(s.pendingShares, msg)
		return nil
	}
	if s.state != StateCollectingShares {
		return s.failLocked(FailureProtocol, errs.NewProtocol(uint16(msg.Sender), "share received outside round 2"))
	}

	if existing, ok := s.shareRaw[msg.Sender]; ok {
		if !bytes.Equal(existing, msg.Payload) {
			return s.failLocked(FailureProtocol, errs.NewProtocol(uint16(msg.Sender), "duplicate share with divergent payload"))
		}
		return nil
	}

	share, err := decodeShare(msg.Sender, msg.Payload)
	if err != nil {
		return s.failLocked(FailureProtocol, errs.NewProtocol(uint16(msg.Sender), err.Error()))
	}

	verifyingShare, ok := s.pkg.Public.VerifyingShares[msg.Sender]
	if !ok {
		return s.failLocked(FailureProtocol, errs.NewProtocol(uint16(msg.Sender), "unknown participant"))
	}
	valid, err := frost.VerifyShare(share, verifyingShare, s.signingPackage, s.tweak)
	if err != nil {
		return s.failLocked(FailureProtocol, errs.NewProtocol(uint16(msg.Sender), err.Error()))
	}
	if !valid {
		return s.failLocked(FailureProtocol, errs.NewProtocol(uint16(msg.Sender), "signature share failed verification"))
	}

	s.shares[msg.Sender] = share
	s.shareRaw[msg.Sender] = append([]byte(nil), msg.Payload...)
	observability.SignatureShareReceived.Inc()

	if len(s.shares) >= s.threshold {
		return s.completeLocked()
	}
	return nil
}

func (s *Signer) completeLocked() error {
	shares := make([]frost.SignatureShare, 0, len(s.signingPackage.SortedIDs))
	for _, id := range s.signingPackage.SortedIDs {
		share, ok := s.shares[id]
		if !ok {
			return s.failLocked(FailureProtocol, errs.NewProtocol(uint16(id), "missing share at aggregation time"))
		}
		shares = append(shares, share)
	}

	sig, err := frost.Aggregate(shares, s.signingPackage, s.tweak)
	if err != nil {
		return s.failLocked(FailureProtocol, errs.Wrap(errs.ErrProtocol, err.Error()))
	}

	s.signature = sig
	s.nonces.Zeroize()
	s.state = StateComplete

	if s.span != nil {
		s.span.Info("ceremony complete")
	}
	return nil
}

// failLocked transitions the signer to Failed, records the reason, and
// zeroizes the nonce pair. Called with mu already held.
func (s *Signer) failLocked(kind FailureKind, err error) error {
	s.nonces.Zeroize()
	s.state = StateFailed
	s.failure = kind
	s.err = err

	if s.span != nil {
		s.span.Warn("signer failed", zap.String("reason", s.failure.String()), zap.Error(err))
	}
	return err
}

// Run drives the signer against its transport until it reaches a terminal
// state or ctx is cancelled. Intended to be the body of the coordinator's
// per-signer goroutine.
func (s *Signer) Run(ctx context.Context) {
	for {
		if s.terminal() {
			return
		}

		deadline := s.currentDeadline()
		msg, err := s.tr.Recv(ctx, s.id, deadline)
		if err != nil {
			s.handleRecvFailure(err)
			return
		}

		// ProcessMessage's own error is already recorded in state; the
		// loop simply re-checks terminality on the next iteration.
		_ = s.ProcessMessage(ctx, msg)
	}
}

func (s *Signer) terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateComplete || s.state == StateFailed
}

func (s *Signer) currentDeadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roundDeadline
}

func (s *Signer) handleRecvFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateComplete || s.state == StateFailed {
		return
	}
	switch {
	case errors.Is(err, errs.ErrTimeout):
		s.failLocked(FailureTimeout, errs.Wrap(errs.ErrTimeout, "round deadline elapsed before threshold"))
	case errors.Is(err, errs.ErrCancelled):
		s.failLocked(FailureCancelled, err)
	default:
		s.failLocked(FailureProtocol, errs.Wrap(errs.ErrTransport, err.Error()))
	}
}
