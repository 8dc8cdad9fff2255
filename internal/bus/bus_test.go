package bus

import (
	"testing"
	"time"

	"github.com/fieldrelay/missionctl/internal/types"
)

func TestBus_SubscribeOnlyReceivesMatchingKind(t *testing.T) {
	b := New()
	phaseCh := b.Subscribe(types.EventPhaseChanged)
	motionCh := b.Subscribe(types.EventMotionSent)

	b.Publish(types.Message{Kind: types.EventPhaseChanged, Payload: types.PhasePlanning})

	select {
	case msg := <-phaseCh:
		if msg.Payload != types.PhasePlanning {
			t.Errorf("payload = %v, want PhasePlanning", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribed message")
	}

	select {
	case msg := <-motionCh:
		t.Errorf("unexpected message on unrelated subscription: %+v", msg)
	default:
	}
}

func TestBus_TapReceivesEveryKind(t *testing.T) {
	b := New()
	tap := b.NewTap()

	b.Publish(types.Message{Kind: types.EventPhaseChanged})
	b.Publish(types.Message{Kind: types.EventMotionAck})

	for i := 0; i < 2; i++ {
		select {
		case <-tap:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for tap message %d", i)
		}
	}
}

func TestBus_PublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b := New()
	b.Subscribe(types.EventAbortObserved) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufSize+10; i++ {
			b.Publish(types.Message{Kind: types.EventAbortObserved})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber channel instead of dropping")
	}
}
