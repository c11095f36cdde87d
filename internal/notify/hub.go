package notify

import (
	"sync"
	"time"

	"pharmahub/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultBufferSize = 64

// Hub is the in-process subscriber registry. It implements both Dispatcher
// and Sink.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{}
	bufferSize  int
	logger      *zap.Logger
}

// NewHub creates a hub whose subscribers buffer up to bufferSize events.
func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[string]map[*Subscription]struct{}),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscription is one connected listener.
type Subscription struct {
	ID       string
	Identity models.Identity

	hub      *Hub
	events   chan Event
	channels []string
	once     sync.Once
}

// Subscribe registers a listener and joins it to the channel of its own
// role and id.
func (h *Hub) Subscribe(identity models.Identity) *Subscription {
	sub := &Subscription{
		ID:       uuid.New().String(),
		Identity: identity,
		hub:      h,
		events:   make(chan Event, h.bufferSize),
	}
	if channel, ok := ChannelFor(identity); ok {
		h.join(sub, channel)
	}
	h.logger.Info("subscriber connected",
		zap.String("subscription_id", sub.ID),
		zap.String("subject_id", identity.SubjectID),
		zap.String("role", string(identity.Role)),
	)
	return sub
}

func (h *Hub) join(sub *Subscription, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.subscribers[channel]
	if !ok {
		members = make(map[*Subscription]struct{})
		h.subscribers[channel] = members
	}
	members[sub] = struct{}{}
	sub.channels = append(sub.channels, channel)
}

// Events is the receive side of the subscription. It is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Channels lists the channels the subscription has joined.
func (s *Subscription) Channels() []string {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return append([]string(nil), s.channels...)
}

// Close leaves every channel and closes Events. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		for _, channel := range s.channels {
			if members, ok := h.subscribers[channel]; ok {
				delete(members, s)
				if len(members) == 0 {
					delete(h.subscribers, channel)
				}
			}
		}
		close(s.events)
		h.mu.Unlock()

		h.logger.Info("subscriber disconnected",
			zap.String("subscription_id", s.ID),
			zap.String("subject_id", s.Identity.SubjectID),
		)
	})
}

// Dispatch implements Dispatcher.
func (h *Hub) Dispatch(channel, event string, payload interface{}) {
	h.Deliver(Event{Channel: channel, Name: event, Payload: payload, SentAt: time.Now()})
}

// Deliver implements Sink. Full subscriber buffers drop the event.
func (h *Hub) Deliver(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[evt.Channel] {
		select {
		case sub.events <- evt:
		default:
			h.logger.Warn("dropping event for slow subscriber",
				zap.String("subscription_id", sub.ID),
				zap.String("channel", evt.Channel),
				zap.String("event", evt.Name),
			)
		}
	}
}

// SubscriberCount reports how many subscribers are joined to channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel])
}
