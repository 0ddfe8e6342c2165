package pubsub

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/boardkit/backend/internal/message"
)

// subscriberBuffer is the per-subscription channel capacity. A subscriber
// that falls this far behind loses events rather than blocking the
// publisher.
const subscriberBuffer = 256

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("broker is closed")

// Subscription is one live registration on a single topic. Events arrive on
// the channel in publish order until the subscriber cancels or the broker
// closes; the channel is then closed. A cancelled subscription cannot be
// re-subscribed.
type Subscription struct {
	ID    string
	topic string
	ch    chan message.Message

	broker *Broker
	once   sync.Once
}

// C is the event channel. It closes when the subscription ends.
func (s *Subscription) C() <-chan message.Message {
	return s.ch
}

// Topic returns the topic this subscription is registered on.
func (s *Subscription) Topic() string {
	return s.topic
}

// Cancel deregisters the subscription and closes its channel. Safe to call
// multiple times and safe to call concurrently with Publish.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.broker.remove(s)
	})
}

// Broker is a single-process topic broker. Topic names are opaque strings
// routed by exact match. A published event is fanned out to every
// subscription registered on its topic at the instant of the call; there is
// no buffering or replay for subscribers that register later.
type Broker struct {
	mu     sync.RWMutex
	topics map[string][]*Subscription
	closed bool
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{topics: make(map[string][]*Subscription)}
}

// Subscribe registers a new subscription on topic.
func (b *Broker) Subscribe(topic string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	sub := &Subscription{
		ID:     uuid.New().String(),
		topic:  topic,
		ch:     make(chan message.Message, subscriberBuffer),
		broker: b,
	}
	b.topics[topic] = append(b.topics[topic], sub)
	return sub, nil
}

// Publish hands msg to every current subscriber of topic, each receiving
// its own copy. It returns once the event is enqueued, not once every
// subscriber has consumed it. With no subscribers the event is dropped.
func (b *Broker) Publish(topic string, msg message.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	for _, sub := range b.topics[topic] {
		select {
		case sub.ch <- msg:
		default:
			// Slow consumer: drop the event to avoid blocking the publisher.
		}
	}
	return nil
}

// Close cancels every subscription and prevents further Publish/Subscribe
// calls. Calling Close more than once is a no-op.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var all []*Subscription
	for _, subs := range b.topics {
		all = append(all, subs...)
	}
	b.topics = make(map[string][]*Subscription)
	b.mu.Unlock()

	for _, sub := range all {
		sub.once.Do(func() {
			close(sub.ch)
		})
	}
	return nil
}

// remove drops sub from its topic and closes its channel. Holding the write
// lock here excludes in-flight Publish calls, so the close cannot race a
// channel send.
func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[sub.topic]
	for i, s := range subs {
		if s == sub {
			b.topics[sub.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[sub.topic]) == 0 {
		delete(b.topics, sub.topic)
	}
	close(sub.ch)
}
