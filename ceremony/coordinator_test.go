package ceremony

import (
	"context"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andreasbros/frost-btc-state-machine/errs"
	"github.com/andreasbros/frost-btc-state-machine/frost"
	"github.com/andreasbros/frost-btc-state-machine/keys"
	"github.com/andreasbros/frost-btc-state-machine/transport"
)

func newCoordinator(t *testing.T, threshold, total int) (*Coordinator, []frost.ParticipantID) {
	t.Helper()
	public, packages, err := keys.Generate(threshold, total, rand.Reader)
	require.NoError(t, err)

	c, err := New(public, packages)
	require.NoError(t, err)

	ids := make([]frost.ParticipantID, 0, total)
	for id := range packages {
		ids = append(ids, id)
	}
	return c, frost.SortParticipantIDs(ids)
}

func TestCoordinatorTwoOfThree(t *testing.T) {
	c, ids := newCoordinator(t, 2, 3)
	chosen := ids[:2]
	tr := transport.NewInMemoryTransport(chosen)

	var message [32]byte
	copy(message[:], "coordinator-two-of-three-test---")

	sig, err := c.Sign(context.Background(), tr, chosen, message, time.Second)
	require.NoError(t, err)
	require.NotEqual(t, frost.Signature{}, sig)
}

func TestCoordinatorThreeOfFive(t *testing.T) {
	c, ids := newCoordinator(t, 3, 5)
	chosen := ids[:3]
	tr := transport.NewInMemoryTransport(chosen)

	var message [32]byte
	copy(message[:], "coordinator-three-of-five-test--")

	sig, err := c.Sign(context.Background(), tr, chosen, message, time.Second)
	require.NoError(t, err)
	require.NotEqual(t, frost.Signature{}, sig)
}

// TestSignRejectsWrongParticipantCount confirms the coordinator refuses to
// start a ceremony with a chosen set whose size doesn't equal the key
// package's threshold, rather than hanging until a round timeout.
func TestSignRejectsWrongParticipantCount(t *testing.T) {
	c, ids := newCoordinator(t, 2, 3)
	tr := transport.NewInMemoryTransport(ids[:1])

	var message [32]byte
	_, err := c.Sign(context.Background(), tr, ids[:1], message, 50*time.Millisecond)
	require.ErrorIs(t, err, errs.ErrInvalidParameters)
}

// TestCeremonyRecordsFailureOutcome confirms a ceremony that cannot reach
// its threshold fails promptly (here via a transport missing one chosen
// participant's queue, rather than waiting out a full round timeout), that
// no signature is produced, and that the failed outcome is recorded in the
// registry.
func TestCeremonyRecordsFailureOutcome(t *testing.T) {
	c, ids := newCoordinator(t, 2, 3)
	chosen := ids[:2]
	tr := transport.NewInMemoryTransport(chosen[:1])

	var message [32]byte
	_, err := c.Sign(context.Background(), tr, chosen, message, 200*time.Millisecond)
	require.Error(t, err)

	sessions := c.registry.Keys()
	require.Len(t, sessions, 1)
	outcome, ok := c.Outcome(sessions[0])
	require.True(t, ok)
	require.False(t, outcome.Succeeded)
}

// TestSessionIsolation runs two concurrent ceremonies over independent
// transports and confirms both complete without cross-session leakage.
func TestSessionIsolation(t *testing.T) {
	c, ids := newCoordinator(t, 2, 3)
	chosenA := ids[:2]
	chosenB := ids[1:3]

	trA := transport.NewInMemoryTransport(chosenA)
	trB := transport.NewInMemoryTransport(chosenB)

	var msgA, msgB [32]byte
	copy(msgA[:], "session-isolation-message-a----")
	copy(msgB[:], "session-isolation-message-b----")

	var wg sync.WaitGroup
	var sigA, sigB frost.Signature
	var errA, errB error

	wg.Add(2)
	go func() {
		defer wg.Done()
		sigA, errA = c.Sign(context.Background(), trA, chosenA, msgA, 2*time.Second)
	}()
	go func() {
		defer wg.Done()
		sigB, errB = c.Sign(context.Background(), trB, chosenB, msgB, 2*time.Second)
	}()
	wg.Wait()

	require.NoError(t, errA)
	require.NoError(t, errB)
	require.NotEqual(t, sigA, sigB)
}

func TestSignRejectsEmptyParticipantSet(t *testing.T) {
	c, _ := newCoordinator(t, 2, 3)
	tr := transport.NewInMemoryTransport(nil)
	var message [32]byte
	_, err := c.Sign(context.Background(), tr, nil, message, time.Second)
	require.ErrorIs(t, err, errs.ErrInvalidParameters)
}
