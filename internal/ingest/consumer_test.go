package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/casafindr/casafindr-sync/internal/store"
	"github.com/casafindr/casafindr-sync/pkg/db/models"
	"github.com/casafindr/casafindr-sync/pkg/idempotency"
)

type fakeGuardStore struct {
	mu     sync.Mutex
	keys   map[string]string
	setErr error
}

func newFakeGuardStore() *fakeGuardStore {
	return &fakeGuardStore{keys: map[string]string{}}
}

func (f *fakeGuardStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key], nil
}

func (f *fakeGuardStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = "1"
	return true, nil
}

func (f *fakeGuardStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (f *fakeGuardStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func newTestConsumer(t *testing.T, fs *fakeStore, guardStore *fakeGuardStore) *Consumer {
	t.Helper()
	h, err := NewBackgroundHandler(fs, testLogger(), nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	var guard *idempotency.Manager
	if guardStore != nil {
		guard, err = idempotency.NewManager(guardStore, time.Hour)
		if err != nil {
			t.Fatalf("new guard: %v", err)
		}
	}

	// The subscription is only touched by Run, not by process.
	c := &Consumer{handler: h, guard: guard, logg: testLogger()}
	return c
}

func TestConsumerProcessAcks(t *testing.T) {
	fs := &fakeStore{}
	c := newTestConsumer(t, fs, newFakeGuardStore())

	result := c.process(context.Background(), "m-1", validChatPayload)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(fs.appended) != 1 {
		t.Fatalf("expected one append, got %d", len(fs.appended))
	}
}

func TestConsumerRedeliveryAckedWithoutAppend(t *testing.T) {
	fs := &fakeStore{}
	c := newTestConsumer(t, fs, newFakeGuardStore())

	c.process(context.Background(), "m-1", validChatPayload)
	result := c.process(context.Background(), "m-1", validChatPayload)
	if !result.ack {
		t.Fatalf("expected redelivery acked, got %+v", result)
	}
	if len(fs.appended) != 1 {
		t.Fatalf("expected guard to stop the second append, got %d", len(fs.appended))
	}
}

func TestConsumerStorageFailureNacksAndUnmarks(t *testing.T) {
	fs := &fakeStore{appendFn: func(context.Context, models.Notification) (store.AppendResult, error) {
		return store.AppendResult{}, errors.New("disk full")
	}}
	guardStore := newFakeGuardStore()
	c := newTestConsumer(t, fs, guardStore)

	result := c.process(context.Background(), "m-1", validChatPayload)
	if !result.nack {
		t.Fatalf("expected nack, got %+v", result)
	}
	if len(guardStore.keys) != 0 {
		t.Fatal("expected guard mark removed so the retry can append")
	}
}

func TestConsumerGuardFailureNacks(t *testing.T) {
	guardStore := newFakeGuardStore()
	guardStore.setErr = errors.New("redis down")
	c := newTestConsumer(t, &fakeStore{}, guardStore)

	result := c.process(context.Background(), "m-1", validChatPayload)
	if !result.nack {
		t.Fatalf("expected nack on guard failure, got %+v", result)
	}
}

func TestConsumerMalformedPayloadAcked(t *testing.T) {
	fs := &fakeStore{}
	c := newTestConsumer(t, fs, nil)

	result := c.process(context.Background(), "m-1", []byte(`{broken`))
	if !result.ack {
		t.Fatalf("expected malformed payload acked and dropped, got %+v", result)
	}
	if len(fs.appended) != 0 {
		t.Fatal("malformed payloads must not reach the store")
	}
}
