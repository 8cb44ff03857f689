package transport

import (
	"context"
	"sync"
	"time"

	"github.com/andreasbros/frost-btc-state-machine/errs"
	"github.com/andreasbros/frost-btc-state-machine/frost"
)

// queue is a single participant's ordered mailbox: a slice protected by a
// mutex, with a channel used purely to wake a blocked consumer on enqueue.
type queue struct {
	mu      sync.Mutex
	pending []Message
	wake    chan struct{}
}

func newQueue() *queue {
	return &queue{wake: make(chan struct{}, 1)}
}

func (q *queue) push(msg Message) {
	q.mu.Lock()
	q.pending = append(q.pending, msg)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Message{}, false
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	return msg, true
}

// InMemoryTransport is the reference Transport: one queue per participant,
// safe for concurrent producers, with a single consumer per queue.
type InMemoryTransport struct {
	participants []frost.ParticipantID
	queues       map[frost.ParticipantID]*queue
}

// NewInMemoryTransport builds a transport wired for exactly participants.
func NewInMemoryTransport(participants []frost.ParticipantID) *InMemoryTransport {
	t := &InMemoryTransport{
		participants: append([]frost.ParticipantID(nil), participants...),
		queues:       make(map[frost.ParticipantID]*queue, len(participants)),
	}
	for _, id := range participants {
		t.queues[id] = newQueue()
	}
	return t
}

func (t *InMemoryTransport) Send(_ context.Context, from frost.ParticipantID, to *frost.ParticipantID, msg Message) error {
	if to != nil {
		q, ok := t.queues[*to]
		if !ok {
			return errs.Wrapf(errs.ErrTransport, "unknown participant %d", *to)
		}
		q.push(msg)
		return nil
	}

	for _, id := range t.participants {
		if id == from {
			continue
		}
		t.queues[id].push(msg)
	}
	return nil
}

func (t *InMemoryTransport) Recv(ctx context.Context, participant frost.ParticipantID, deadline time.Time) (Message, error) {
	q, ok := t.queues[participant]
	if !ok {
		return Message{}, errs.Wrapf(errs.ErrTransport, "unknown participant %d", participant)
	}

	for {
		if msg, ok := q.pop(); ok {
			return msg, nil
		}

		var timer *time.Timer
		var timerC <-chan time.Time
		if !deadline.IsZero() {
			d := time.Until(deadline)
			if d <= 0 {
				return Message{}, errs.ErrTimeout
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return Message{}, errs.Wrap(errs.ErrCancelled, ctx.Err().Error())
		case <-timerC:
			return Message{}, errs.ErrTimeout
		case <-q.wake:
			if timer != nil {
				timer.Stop()
			}
			// loop around to pop; another goroutine may have raced us.
		}
	}
}
