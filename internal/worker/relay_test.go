package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/eventcat/eventcat/internal/model"
	"github.com/eventcat/eventcat/internal/util"
)

// fakeOutbox emulates the claim semantics of the real table: a row claimed
// inside one WithTx scope is invisible to concurrent claimants until the
// scope ends, and an unmarked row becomes claimable again afterwards. The tx
// pointer is used only as a scope key; no methods are ever called on it.
type fakeOutbox struct {
	mu     sync.Mutex
	order  []string
	msgs   map[string]*model.OutboxMessage
	locked map[string]bool
	claims map[*sqlx.Tx][]string
	marked map[string]int // MarkSent transitions per id
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{
		msgs:   map[string]*model.OutboxMessage{},
		locked: map[string]bool{},
		claims: map[*sqlx.Tx][]string{},
		marked: map[string]int{},
	}
}

func (f *fakeOutbox) add(topic string, payload []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := util.New()
	f.order = append(f.order, id)
	f.msgs[id] = &model.OutboxMessage{
		ID:        id,
		Topic:     topic,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	return id
}

func (f *fakeOutbox) Enqueue(_ context.Context, _ *sqlx.Tx, topic string, payload []byte) (string, error) {
	return f.add(topic, payload), nil
}

func (f *fakeOutbox) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	tx := new(sqlx.Tx)
	f.mu.Lock()
	f.claims[tx] = nil
	f.mu.Unlock()

	err := fn(tx)

	f.mu.Lock()
	for _, id := range f.claims[tx] {
		f.locked[id] = false
	}
	delete(f.claims, tx)
	f.mu.Unlock()

	return err
}

func (f *fakeOutbox) ClaimUnsent(_ context.Context, tx *sqlx.Tx, limit int) ([]model.OutboxMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.OutboxMessage
	for _, id := range f.order {
		if len(out) >= limit {
			break
		}
		m := f.msgs[id]
		if m.Sent || f.locked[id] {
			continue
		}
		f.locked[id] = true
		f.claims[tx] = append(f.claims[tx], id)
		out = append(out, *m)
	}

	return out, nil
}

func (f *fakeOutbox) MarkSent(_ context.Context, _ *sqlx.Tx, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.msgs[id]
	if !ok {
		return fmt.Errorf("unknown message %s", id)
	}
	if m.Sent {
		return nil // monotonic, same as the WHERE sent = FALSE guard
	}
	m.Sent = true
	m.SentAt = &at
	f.marked[id]++

	return nil
}

func (f *fakeOutbox) unsentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if !m.Sent {
			n++
		}
	}
	return n
}

type fakeSink struct {
	mu      sync.Mutex
	sends   map[string]int // deliveries per message id (sink key)
	failing map[string]bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{sends: map[string]int{}, failing: map[string]bool{}}
}

func (s *fakeSink) Send(_ context.Context, _, key string, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[key] {
		return errors.New("broker unavailable")
	}
	s.sends[key]++
	return nil
}

func TestProcessBatchDeliversAndMarksSent(t *testing.T) {
	outbox := newFakeOutbox()
	sink := newFakeSink()
	ids := []string{
		outbox.add("registration.created", []byte(`{"n":1}`)),
		outbox.add("registration.created", []byte(`{"n":2}`)),
	}

	relay := NewRelay(outbox, sink, nil)
	if err := relay.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	for _, id := range ids {
		if got := sink.sends[id]; got != 1 {
			t.Fatalf("message %s delivered %d times", id, got)
		}
		if m := outbox.msgs[id]; !m.Sent || m.SentAt == nil {
			t.Fatalf("message %s not marked sent", id)
		}
	}
}

func TestDeliveryFailureDoesNotAbortBatch(t *testing.T) {
	outbox := newFakeOutbox()
	sink := newFakeSink()
	ok1 := outbox.add("registration.created", []byte(`{"n":1}`))
	bad := outbox.add("registration.created", []byte(`{"n":2}`))
	ok2 := outbox.add("registration.created", []byte(`{"n":3}`))
	sink.failing[bad] = true

	relay := NewRelay(outbox, sink, nil)
	if err := relay.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	if !outbox.msgs[ok1].Sent || !outbox.msgs[ok2].Sent {
		t.Fatal("healthy messages should be sent despite a failing sibling")
	}
	if outbox.msgs[bad].Sent {
		t.Fatal("failed message must stay unsent")
	}

	// Sink recovers; the next cycle picks the leftover up.
	sink.failing[bad] = false
	if err := relay.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("retry batch: %v", err)
	}
	if !outbox.msgs[bad].Sent {
		t.Fatal("recovered message should be sent on the next cycle")
	}
	if got := sink.sends[bad]; got != 1 {
		t.Fatalf("recovered message delivered %d times", got)
	}
}

func TestBatchSizeLimitsClaim(t *testing.T) {
	outbox := newFakeOutbox()
	sink := newFakeSink()
	for i := 0; i < 5; i++ {
		outbox.add("registration.created", []byte(`{}`))
	}

	relay := NewRelay(outbox, sink, nil)
	relay.BatchSize = 2

	if err := relay.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if got := outbox.unsentCount(); got != 3 {
		t.Fatalf("one batch of 2 should leave 3 unsent, got %d", got)
	}
}

func TestConcurrentRelaysNeverDoubleSend(t *testing.T) {
	outbox := newFakeOutbox()
	sink := newFakeSink()
	const total = 200
	for i := 0; i < total; i++ {
		outbox.add("registration.created", []byte(`{}`))
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		relay := NewRelay(outbox, sink, nil)
		relay.BatchSize = 7
		wg.Add(1)
		go func() {
			defer wg.Done()
			for outbox.unsentCount() > 0 {
				if err := relay.ProcessBatch(context.Background()); err != nil {
					t.Errorf("ProcessBatch: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := outbox.unsentCount(); got != 0 {
		t.Fatalf("%d messages left unsent", got)
	}
	for id, n := range sink.sends {
		if n != 1 {
			t.Fatalf("message %s delivered %d times", id, n)
		}
	}
	if len(sink.sends) != total {
		t.Fatalf("delivered %d distinct messages, want %d", len(sink.sends), total)
	}
	for id, n := range outbox.marked {
		if n != 1 {
			t.Fatalf("message %s marked sent %d times", id, n)
		}
	}
}
