// Package notif pushes committed store mutations to subscribed observers
// (dashboards). The store layer is the publisher; each observer holds a
// Subscription fed by its own ordered channel.
package notif

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Topics
const (
	TopicEnrollment = "enrollment"
	TopicAccessCode = "accesscode"
	TopicAudit      = "audit"
)

// Subscription states: Connecting -> Active -> (Errored | Closed).
type State int32

const (
	Connecting State = iota
	Active
	Errored
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Errored:
		return "error"
	case Closed:
		return "closed"
	}
	return "unknown"
}

var (
	// ErrSlowConsumer is reported on a Subscription whose owner stopped
	// draining events; the subscription is dropped rather than delivering
	// a partial or reordered stream.
	ErrSlowConsumer = errors.New("subscriber is not consuming events")

	// ErrBrokerClosed is reported when the broker shut down under the subscription.
	ErrBrokerClosed = errors.New("broker closed")
)

// Event is one committed mutation. Events for the same entity are delivered
// in commit order.
type Event struct {
	Topic     string      `json:"topic"`
	Action    string      `json:"action"`
	StudentID string      `json:"student_id,omitempty"`
	CourseID  string      `json:"course_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	At        time.Time   `json:"at"`
}

// Filter is a server-evaluated predicate; zero fields match everything.
type Filter struct {
	Topics    []string
	StudentID string
	CourseID  string
}

func (f Filter) matches(e Event) bool {
	if len(f.Topics) > 0 {
		var ok bool
		for _, t := range f.Topics {
			if t == e.Topic {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.StudentID != "" && f.StudentID != e.StudentID {
		return false
	}
	if f.CourseID != "" && f.CourseID != e.CourseID {
		return false
	}
	return true
}

type Subscription struct {
	id     uint64
	filter Filter
	ch     chan Event
	state  int32 // atomic State
	mu     sync.Mutex
	err    error
	closeC chan struct{}
}

// Events returns the subscription's ordered event channel. It is closed when
// the subscription leaves the Active state; check Err() to distinguish a
// clean Close from a failure.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the subscription is terminal.
func (s *Subscription) Done() <-chan struct{} {
	return s.closeC
}

// terminate moves the subscription to a terminal state exactly once.
// Must be called with the broker lock held (no Publish can race the close).
func (s *Subscription) terminate(state State, err error) {
	cur := State(atomic.LoadInt32(&s.state))
	if cur == Errored || cur == Closed {
		return
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	atomic.StoreInt32(&s.state, int32(state))
	close(s.ch)
	close(s.closeC)
}

// Broker fans committed mutations out to subscriptions. Publish is serialized,
// which is what preserves commit order on every subscription channel.
type Broker struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	bufSize int
	closed  bool
}

func NewBroker() *Broker {
	return &Broker{
		subs:    make(map[uint64]*Subscription),
		bufSize: 64,
	}
}

// Subscribe registers an observer. The subscription is terminated when ctx is
// cancelled or Close is called on it; cancelling never affects the data it
// was observing.
func (b *Broker) Subscribe(ctx context.Context, filter Filter) *Subscription {
	sub := &Subscription{
		filter: filter,
		ch:     make(chan Event, b.bufSize),
		state:  int32(Connecting),
		closeC: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.mu.Lock()
		sub.err = ErrBrokerClosed
		sub.mu.Unlock()
		atomic.StoreInt32(&sub.state, int32(Errored))
		close(sub.ch)
		close(sub.closeC)
		return sub
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	atomic.StoreInt32(&sub.state, int32(Active))
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.remove(sub, Closed, nil)
		case <-sub.closeC:
		}
	}()
	return sub
}

// Publish delivers the event to every matching active subscription.
// A subscriber that stopped draining its channel is moved to Errored and
// dropped; it never receives a torn or reordered stream.
func (b *Broker) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		if !sub.filter.matches(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			sub.terminate(Errored, ErrSlowConsumer)
			delete(b.subs, id)
		}
	}
}

// Unsubscribe closes sub and releases its resources.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.remove(sub, Closed, nil)
}

func (b *Broker) remove(sub *Subscription, state State, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub.terminate(state, err)
	delete(b.subs, sub.id)
}

// Close terminates every subscription and rejects new ones.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.terminate(Closed, nil)
		delete(b.subs, id)
	}
}
