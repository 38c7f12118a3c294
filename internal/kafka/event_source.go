package kafka

import (
	"context"
	"sync"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/nguyentranbao-ct/chat-desk/internal/repo/chatapi"
	"github.com/segmentio/ksuid"
)

// EventSource fans channel events read from Kafka out to live subscribers.
type EventSource struct {
	mu   sync.RWMutex
	subs map[string]subscriber
}

type subscriber struct {
	channel string
	handler models.LiveHandler
}

func NewEventSource() *EventSource {
	return &EventSource{subs: map[string]subscriber{}}
}

func (s *EventSource) Subscribe(_ context.Context, handle *models.ChannelHandle, handler models.LiveHandler) (string, error) {
	if !handle.Valid() {
		return "", models.ErrInvalidHandle
	}
	id := ksuid.New().String()
	s.mu.Lock()
	s.subs[id] = subscriber{channel: handle.URL, handler: handler}
	s.mu.Unlock()
	return id, nil
}

func (s *EventSource) Unsubscribe(id string) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

// Dispatch decodes env and delivers it to every subscriber of its channel.
// It returns the number of handlers invoked.
func (s *EventSource) Dispatch(env models.LiveEnvelope) (int, error) {
	s.mu.RLock()
	var handlers []models.LiveHandler
	for _, sub := range s.subs {
		if sub.channel == env.ChannelURL {
			handlers = append(handlers, sub.handler)
		}
	}
	s.mu.RUnlock()

	if len(handlers) == 0 {
		return 0, nil
	}
	ev, err := env.Decode(chatapi.DecodeMessage)
	if err != nil {
		return 0, err
	}
	for _, h := range handlers {
		h(ev)
	}
	return len(handlers), nil
}
