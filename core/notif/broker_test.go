package notif

import (
	"context"
	"testing"
	"time"
)

func collect(t *testing.T, sub *Subscription, n int) []Event {
	t.Helper()
	events := make([]Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				t.Fatalf("channel closed after %d events (state=%s, err=%v)", len(events), sub.State(), sub.Err())
			}
			events = append(events, e)
		case <-timeout:
			t.Fatalf("timed out after %d events", len(events))
		}
	}
	return events
}

func TestBroker_publishOrder(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	sub := b.Subscribe(context.Background(), Filter{})
	if sub.State() != Active {
		t.Fatalf("state = %s, want %s", sub.State(), Active)
	}

	b.Publish(Event{Topic: TopicEnrollment, Action: "created", StudentID: "S1"})
	b.Publish(Event{Topic: TopicEnrollment, Action: "payment_updated", StudentID: "S1"})
	b.Publish(Event{Topic: TopicEnrollment, Action: "verified", StudentID: "S1"})

	events := collect(t, sub, 3)
	wantActions := []string{"created", "payment_updated", "verified"}
	for i, want := range wantActions {
		if events[i].Action != want {
			t.Errorf("events[%d].Action = %s, want %s", i, events[i].Action, want)
		}
		if events[i].At.IsZero() {
			t.Errorf("events[%d].At is zero", i)
		}
	}
}

func TestBroker_filter(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	byTopic := b.Subscribe(context.Background(), Filter{Topics: []string{TopicAudit}})
	byStudent := b.Subscribe(context.Background(), Filter{StudentID: "S1"})
	byCourse := b.Subscribe(context.Background(), Filter{CourseID: "C2"})

	b.Publish(Event{Topic: TopicEnrollment, Action: "created", StudentID: "S1", CourseID: "C1"})
	b.Publish(Event{Topic: TopicEnrollment, Action: "created", StudentID: "S2", CourseID: "C2"})
	b.Publish(Event{Topic: TopicAudit, Action: "generate_code"})

	if e := collect(t, byTopic, 1)[0]; e.Topic != TopicAudit {
		t.Errorf("byTopic got topic %s, want %s", e.Topic, TopicAudit)
	}
	if e := collect(t, byStudent, 1)[0]; e.StudentID != "S1" {
		t.Errorf("byStudent got student %s, want S1", e.StudentID)
	}
	if e := collect(t, byCourse, 1)[0]; e.CourseID != "C2" {
		t.Errorf("byCourse got course %s, want C2", e.CourseID)
	}
}

func TestBroker_contextCancel(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx, Filter{})
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not terminate on context cancel")
	}
	if sub.State() != Closed {
		t.Errorf("state = %s, want %s", sub.State(), Closed)
	}
	if sub.Err() != nil {
		t.Errorf("err = %v, want nil", sub.Err())
	}

	// a cancelled observer never affects the publisher
	b.Publish(Event{Topic: TopicEnrollment, Action: "created"})
}

func TestBroker_slowConsumer(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	sub := b.Subscribe(context.Background(), Filter{})
	for i := 0; i < b.bufSize+1; i++ {
		b.Publish(Event{Topic: TopicEnrollment, Action: "created"})
	}

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("slow subscription was not dropped")
	}
	if sub.State() != Errored {
		t.Errorf("state = %s, want %s", sub.State(), Errored)
	}
	if sub.Err() != ErrSlowConsumer {
		t.Errorf("err = %v, want %v", sub.Err(), ErrSlowConsumer)
	}

	// the buffered prefix stays readable; the channel then closes with no gap in between
	var n int
	for range sub.Events() {
		n++
	}
	if n != b.bufSize {
		t.Errorf("drained %d events, want %d", n, b.bufSize)
	}
}

func TestBroker_close(t *testing.T) {
	b := NewBroker()

	sub := b.Subscribe(context.Background(), Filter{})
	b.Close()

	if sub.State() != Closed {
		t.Errorf("state = %s, want %s", sub.State(), Closed)
	}

	late := b.Subscribe(context.Background(), Filter{})
	if late.State() != Errored {
		t.Errorf("late state = %s, want %s", late.State(), Errored)
	}
	if late.Err() != ErrBrokerClosed {
		t.Errorf("late err = %v, want %v", late.Err(), ErrBrokerClosed)
	}
}
