package events

import (
	"context"
	"encoding/json"
	"errors"
	"fleet-ops-service/internal/domain"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

// fakeReader hands out queued messages, then cancels the run.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	fetches   int
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetches++
	if len(f.msgs) == 0 {
		f.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) Committed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func (f *fakeReader) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func newTestConsumer(r KafkaReader) *DeliveryQueuedConsumer {
	c := NewDeliveryQueuedConsumerWithReader(r, nil)
	c.retryBackoff = time.Millisecond
	return c
}

func assertOffsets(t *testing.T, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("committed = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("committed = %v, want %v", got, want)
		}
	}
}

func TestDeliveryQueuedConsumerRun(t *testing.T) {
	ev := domain.DeliveryQueued{
		DeliveryID:          "del-1",
		OrderID:             "o1",
		DeliveryCoordinates: domain.Coordinates{Lat: -34.6, Lng: -58.4},
	}
	bare, _ := json.Marshal(ev)
	wrapped, err := encode(domain.TopicDeliveryQueued, domain.DeliveryQueued{
		DeliveryID:          "del-2",
		DeliveryCoordinates: domain.Coordinates{Lat: 10, Lng: 10},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	flaky, _ := json.Marshal(domain.DeliveryQueued{DeliveryID: "del-3"})
	after, _ := json.Marshal(domain.DeliveryQueued{DeliveryID: "del-4"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel: cancel,
		msgs: []kafka.Message{
			{Offset: 1, Value: bare},
			{Offset: 2, Value: []byte("not json")},
			{Offset: 3, Value: wrapped},
			{Offset: 4, Value: flaky},
			{Offset: 5, Value: after},
		},
	}

	var seen []string
	failed := false
	handler := func(ctx context.Context, ev domain.DeliveryQueued) error {
		seen = append(seen, ev.DeliveryID)
		if ev.DeliveryID == "del-3" && !failed {
			failed = true
			return errors.New("handler failed")
		}
		return nil
	}

	c := newTestConsumer(reader)
	if err := c.Run(ctx, handler); err != nil {
		t.Fatalf("run: %v", err)
	}

	// del-3 is retried in place before del-4 is fetched.
	want := []string{"del-1", "del-2", "del-3", "del-3", "del-4"}
	if len(seen) != len(want) {
		t.Fatalf("handled = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("handled = %v, want %v", seen, want)
		}
	}

	assertOffsets(t, reader.Committed(), []int64{1, 2, 3, 4, 5})
}

func TestDeliveryQueuedConsumerKeepsFailedOffsetUncommitted(t *testing.T) {
	ok, _ := json.Marshal(domain.DeliveryQueued{DeliveryID: "del-1"})
	stuck, _ := json.Marshal(domain.DeliveryQueued{DeliveryID: "del-2"})
	next, _ := json.Marshal(domain.DeliveryQueued{DeliveryID: "del-3"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel: cancel,
		msgs: []kafka.Message{
			{Offset: 1, Value: ok},
			{Offset: 2, Value: stuck},
			{Offset: 3, Value: next},
		},
	}

	attempts := 0
	handler := func(ctx context.Context, ev domain.DeliveryQueued) error {
		if ev.DeliveryID != "del-2" {
			return nil
		}
		attempts++
		if attempts == 5 {
			cancel()
		}
		return errors.New("downstream unavailable")
	}

	c := newTestConsumer(reader)
	if err := c.Run(ctx, handler); err != nil {
		t.Fatalf("run: %v", err)
	}

	if attempts != 5 {
		t.Fatalf("attempts = %d, want 5", attempts)
	}
	// Offset 3 was never fetched, so nothing can commit past offset 2.
	if got := reader.Fetches(); got != 2 {
		t.Fatalf("fetches = %d, want 2", got)
	}
	assertOffsets(t, reader.Committed(), []int64{1})
}
