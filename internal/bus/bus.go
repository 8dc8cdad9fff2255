// Package bus is the observable event fabric missionctl uses for
// cross-cutting notifications, such as the status relay in cmd/missionctl,
// that sit alongside, not instead of, the Mission Context's lock/condition
// variables. The executor, operator listener, and motion-controller
// listener still coordinate through internal/missioncontext directly; this
// bus only carries read-only fan-out of "something happened" events.
package bus

import (
	"log"
	"sync"

	"github.com/fieldrelay/missionctl/internal/types"
)

const (
	subscriberBufSize = 64
	tapBufSize        = 256
)

// Bus fans out Messages to subscribers of a given EventKind and to every
// registered tap (e.g. the status relay).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[types.EventKind][]chan types.Message
	taps        []chan types.Message
}

// New creates a new Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[types.EventKind][]chan types.Message),
	}
}

// Publish fans out msg to all subscribers of msg.Kind and to every tap.
// Non-blocking: if a subscriber's channel is full, the message is dropped
// with a warning rather than stalling the publisher.
func (b *Bus) Publish(msg types.Message) {
	b.mu.RLock()
	subs := b.subscribers[msg.Kind]
	taps := b.taps
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
			log.Printf("[BUS] WARNING: subscriber channel full for kind=%s, message dropped", msg.Kind)
		}
	}

	for _, tap := range taps {
		select {
		case tap <- msg:
		default:
			log.Printf("[BUS] WARNING: tap channel full, message dropped kind=%s", msg.Kind)
		}
	}
}

// Subscribe returns a receive-only channel that delivers messages of kind k.
// Each call creates a new independent subscriber channel.
func (b *Bus) Subscribe(k types.EventKind) <-chan types.Message {
	ch := make(chan types.Message, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[k] = append(b.subscribers[k], ch)
	b.mu.Unlock()
	return ch
}

// NewTap registers and returns a new read-only tap channel that receives
// every published message regardless of kind.
func (b *Bus) NewTap() <-chan types.Message {
	ch := make(chan types.Message, tapBufSize)
	b.mu.Lock()
	b.taps = append(b.taps, ch)
	b.mu.Unlock()
	return ch
}
