package board

import (
	"context"
	"log"

	"github.com/boardkit/backend/internal/message"
	"github.com/boardkit/backend/internal/pubsub"
)

// TopicMessages receives every created and every updated message.
const TopicMessages = "messages"

// userTopicPrefix derives per-recipient topics from the message name.
const userTopicPrefix = "messages.user:"

// UserTopic returns the broker topic carrying messages addressed to name.
func UserTopic(name string) string {
	return userTopicPrefix + name
}

// Service binds store mutations to broker notifications. It holds no state
// of its own: reads pass straight through to the store, and writes publish
// the snapshot the store returned, so a subscriber observing an event can
// immediately read the same message back. A failed write never publishes.
type Service struct {
	store  message.Store
	broker *pubsub.Broker
}

// NewService creates a Service over the given store and broker.
func NewService(store message.Store, broker *pubsub.Broker) *Service {
	return &Service{store: store, broker: broker}
}

// ViewMessages returns all current messages.
func (s *Service) ViewMessages(ctx context.Context) ([]message.Message, error) {
	return s.store.List(ctx)
}

// GetMessage returns the message with the given id.
func (s *Service) GetMessage(ctx context.Context, id string) (message.Message, error) {
	return s.store.Get(ctx, id)
}

// SendMessage creates a message and, once the store has committed it,
// publishes the snapshot to the global topic and the recipient's topic.
func (s *Service) SendMessage(ctx context.Context, name, content string) (message.Message, error) {
	m, err := s.store.Create(ctx, name, content)
	if err != nil {
		return message.Message{}, err
	}

	s.publish(TopicMessages, m)
	s.publish(UserTopic(m.Name), m)
	return m, nil
}

// UpdateMessage updates a message and republishes the new snapshot to the
// global topic. The per-recipient topic is not re-notified on update.
func (s *Service) UpdateMessage(ctx context.Context, id, content, name string) (message.Message, error) {
	m, err := s.store.Update(ctx, id, content, name)
	if err != nil {
		return message.Message{}, err
	}

	s.publish(TopicMessages, m)
	return m, nil
}

// DeleteMessage removes a message. Deletes are never announced.
func (s *Service) DeleteMessage(ctx context.Context, id string) (string, error) {
	return s.store.Delete(ctx, id)
}

// SubscribeAll registers a subscription receiving every message event.
func (s *Service) SubscribeAll() (*pubsub.Subscription, error) {
	return s.broker.Subscribe(TopicMessages)
}

// SubscribeUser registers a subscription receiving only messages addressed
// to name.
func (s *Service) SubscribeUser(name string) (*pubsub.Subscription, error) {
	return s.broker.Subscribe(UserTopic(name))
}

func (s *Service) publish(topic string, m message.Message) {
	if err := s.broker.Publish(topic, m); err != nil {
		log.Printf("board: failed to publish message %s to %s: %v", m.ID, topic, err)
	}
}
