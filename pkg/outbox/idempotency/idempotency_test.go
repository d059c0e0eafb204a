package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	keys    map[string]time.Duration
	setErr  error
	delErr  error
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]time.Duration{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	if _, ok := s.keys[key]; ok {
		return "1", nil
	}
	return "", nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if s.setErr != nil {
		return false, s.setErr
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = ttl
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "rf:idempotency:" + scope + ":" + id
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	if s.delErr != nil {
		return s.delErr
	}
	for _, key := range keys {
		delete(s.keys, key)
		s.deleted = append(s.deleted, key)
	}
	return nil
}

func TestCheckAndMarkProcessed(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	already, err := manager.CheckAndMarkProcessed(context.Background(), "low-stock-alerts", eventID)
	require.NoError(t, err)
	assert.False(t, already)

	key := "rf:idempotency:evt:processed:low-stock-alerts:" + eventID.String()
	assert.Equal(t, 24*time.Hour, store.keys[key])

	already, err = manager.CheckAndMarkProcessed(context.Background(), "low-stock-alerts", eventID)
	require.NoError(t, err)
	assert.True(t, already)

	// markers are scoped per consumer
	already, err = manager.CheckAndMarkProcessed(context.Background(), "stock-digest", eventID)
	require.NoError(t, err)
	assert.False(t, already)
}

func TestCheckAndMarkProcessedValidation(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "", uuid.New())
	assert.Error(t, err)
	_, err = manager.CheckAndMarkProcessed(context.Background(), "low-stock-alerts", uuid.Nil)
	assert.Error(t, err)

	_, err = NewManager(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewManager(newMemoryStore(), -time.Second)
	assert.Error(t, err)
}

func TestCheckAndMarkProcessedStoreError(t *testing.T) {
	store := newMemoryStore()
	store.setErr = errors.New("connection refused")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "low-stock-alerts", uuid.New())
	assert.ErrorIs(t, err, store.setErr)
}

func TestOnceRunsHandlerOnce(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()
	calls := 0
	handler := func(context.Context) error { calls++; return nil }

	outcome, err := manager.Once(context.Background(), "low-stock-alerts", eventID, handler)
	require.NoError(t, err)
	assert.Equal(t, Handled, outcome)

	outcome, err = manager.Once(context.Background(), "low-stock-alerts", eventID, handler)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, outcome)
	assert.Equal(t, 1, calls)
}

func TestOnceClearsMarkerOnFailure(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()
	sendErr := errors.New("smtp down")

	_, err = manager.Once(context.Background(), "low-stock-alerts", eventID, func(context.Context) error { return sendErr })
	assert.ErrorIs(t, err, sendErr)
	assert.Equal(t, []string{"rf:idempotency:evt:processed:low-stock-alerts:" + eventID.String()}, store.deleted)
	assert.Empty(t, store.keys)

	outcome, err := manager.Once(context.Background(), "low-stock-alerts", eventID, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, Handled, outcome)
}

func TestOnceReportsMarkerCleanupFailure(t *testing.T) {
	store := newMemoryStore()
	store.delErr = errors.New("redis gone")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	sendErr := errors.New("smtp down")

	_, err = manager.Once(context.Background(), "low-stock-alerts", uuid.New(), func(context.Context) error { return sendErr })
	assert.ErrorIs(t, err, sendErr)
	assert.ErrorIs(t, err, store.delErr)
}
