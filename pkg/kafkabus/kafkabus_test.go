package kafkabus_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"pharmahub/internal/notify"
	"pharmahub/pkg/kafkabus"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *collectingSink) Deliver(evt notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *collectingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.events))
	for _, evt := range s.events {
		names = append(names, evt.Name)
	}
	return names
}

func TestRelay_StopsWhenContextIsDone(t *testing.T) {
	bus := kafkabus.New(kafkabus.Config{Brokers: []string{"127.0.0.1:1"}, Topic: "unused"}, nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bus.Relay(ctx, &collectingSink{})
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("relay did not stop")
	}
}

// Requires a running broker, e.g. KAFKA_BROKERS=localhost:9092
func TestBus_DispatchIsRelayed(t *testing.T) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_BROKERS not set")
	}
	bus := kafkabus.New(kafkabus.Config{
		Brokers: strings.Split(brokers, ","),
		Topic:   "pharmahub-test-" + uuid.New().String(),
	}, nil)
	defer bus.Close()

	sink := &collectingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Relay(ctx, sink)

	// the relay starts at the newest offset, so keep publishing until it has joined
	require.Eventually(t, func() bool {
		bus.Dispatch(notify.PharmacyChannel("pharmacy-a"), notify.EventOrderStatusUpdated, map[string]string{"status": "confirmed"})
		return len(sink.names()) > 0
	}, 30*time.Second, 500*time.Millisecond)

	assert.Equal(t, notify.EventOrderStatusUpdated, sink.names()[0])
}
