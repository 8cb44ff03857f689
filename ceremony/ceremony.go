// Package ceremony implements the coordinator that drives a single FROST
// signing session across its chosen signers.
package ceremony

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/andreasbros/frost-btc-state-machine/errs"
	"github.com/andreasbros/frost-btc-state-machine/frost"
	"github.com/andreasbros/frost-btc-state-machine/keys"
	"github.com/andreasbros/frost-btc-state-machine/observability"
	"github.com/andreasbros/frost-btc-state-machine/signer"
	"github.com/andreasbros/frost-btc-state-machine/transport"
)

// DefaultRoundTimeout is the per-round deadline used when the caller
// doesn't override it.
const DefaultRoundTimeout = 60 * time.Second

// registryCapacity bounds the observability registry to recently-completed
// ceremonies only.
const registryCapacity = 256

// Outcome is the terminal, loggable result of one ceremony: no secret
// material, suitable for the bounded registry and for logging.
type Outcome struct {
	SessionID    uint64
	Participants []frost.ParticipantID
	Succeeded    bool
	FailureKind  string
	StartedAt    time.Time
	EndedAt      time.Time
}

// Coordinator drives signing ceremonies against one key package and
// transport, recording a bounded history of recent outcomes.
type Coordinator struct {
	public   *keys.PublicKeyPackage
	packages map[frost.ParticipantID]*keys.Package
	registry *lru.Cache[uint64, Outcome]
	mu       sync.Mutex
}

// New builds a coordinator over the given per-participant key packages.
func New(public *keys.PublicKeyPackage, packages map[frost.ParticipantID]*keys.Package) (*Coordinator, error) {
	reg, err := lru.New[uint64, Outcome](registryCapacity)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}
	return &Coordinator{public: public, packages: packages, registry: reg}, nil
}

// randomSessionID draws a uniformly random 64-bit session id.
func randomSessionID() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// Sign runs one complete ceremony over the chosen participants against
// message, using tr as the shared transport. Spins up one goroutine per
// signer; if any signer fails, the remaining signers are cancelled and the
// first failure is returned. On success, returns the aggregated signature
// (all t signers' outputs are verified byte-identical before return).
func (c *Coordinator) Sign(ctx context.Context, tr transport.Transport, chosen []frost.ParticipantID, message [32]byte, roundTimeout time.Duration) (frost.Signature, error) {
	if len(chosen) != c.public.Threshold {
		return frost.Signature{}, errs.Wrapf(errs.ErrInvalidParameters, "ceremony requires exactly %d participants, got %d", c.public.Threshold, len(chosen))
	}
	if roundTimeout <= 0 {
		roundTimeout = DefaultRoundTimeout
	}

	sessionID, err := randomSessionID()
	if err != nil {
		return frost.Signature{}, errs.Wrap(errs.ErrInvalidParameters, err.Error())
	}

	sortedChosen := frost.SortParticipantIDs(chosen)
	span := observability.CeremonySpan(sessionID)
	span.Info("ceremony starting", zap.Int("participants", len(sortedChosen)))

	signers := make(map[frost.ParticipantID]*signer.Signer, len(sortedChosen))
	for _, id := range sortedChosen {
		pkg, ok := c.packages[id]
		if !ok {
			return frost.Signature{}, errs.Wrapf(errs.ErrInvalidParameters, "no key package for participant %d", id)
		}
		s := signer.New(id, pkg, tr)
		s.SetSpan(observability.SignerSpan(span, uint16(id)))
		signers[id] = s
	}

	started := time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, id := range sortedChosen {
		s := signers[id]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.InitiateSigning(runCtx, sessionID, len(sortedChosen), sortedChosen, message, roundTimeout); err != nil {
				cancel()
				return
			}
			s.Run(runCtx)
			if s.State() == signer.StateFailed {
				cancel()
			}
		}()
	}
	wg.Wait()

	outcome := Outcome{SessionID: sessionID, Participants: sortedChosen, StartedAt: started}

	var firstFailure error
	var signature frost.Signature
	haveSignature := false
	for _, id := range sortedChosen {
		s := signers[id]
		if sig, ok := s.Signature(); ok {
			if !haveSignature {
				signature = sig
				haveSignature = true
			} else if sig != signature {
				firstFailure = errs.Wrap(errs.ErrInvalidSignature, "signers produced divergent aggregated signatures")
			}
			continue
		}
		// A cancellation is only a consequence of a sibling's failure; the
		// failure that triggered it takes precedence.
		if err := s.Err(); err != nil && (firstFailure == nil || (errors.Is(firstFailure, errs.ErrCancelled) && !errors.Is(err, errs.ErrCancelled))) {
			firstFailure = err
		}
	}

	outcome.EndedAt = time.Now()
	if firstFailure != nil {
		outcome.Succeeded = false
		outcome.FailureKind = firstFailure.Error()
		c.recordOutcome(outcome)
		observability.CeremonyFailed.WithLabelValues(failureReason(firstFailure)).Inc()
		span.Warn("ceremony failed", zap.Error(firstFailure))
		return frost.Signature{}, firstFailure
	}

	if !haveSignature {
		err := errs.Wrap(errs.ErrProtocol, "no signer completed the ceremony")
		outcome.Succeeded = false
		outcome.FailureKind = err.Error()
		c.recordOutcome(outcome)
		observability.CeremonyFailed.WithLabelValues(failureReason(err)).Inc()
		return frost.Signature{}, err
	}

	outcome.Succeeded = true
	c.recordOutcome(outcome)
	span.Info("ceremony completed")
	observability.CeremonyCompleted.Inc()
	return signature, nil
}

// failureReason maps a terminal ceremony error to the label value the
// ceremony_failed counter is keyed on.
func failureReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, errs.ErrTimeout):
		return "timeout"
	case errors.Is(err, errs.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, errs.ErrProtocol):
		return "protocol"
	case errors.Is(err, errs.ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

func (c *Coordinator) recordOutcome(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.Add(o.SessionID, o)
}

// Outcome returns the recorded outcome for sessionID, if it is still held
// in the bounded registry.
func (c *Coordinator) Outcome(sessionID uint64) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Get(sessionID)
}
