package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeRunner struct {
	ran bool
	err error
}

func (f *fakeRunner) Run(context.Context) error {
	f.ran = true
	return f.err
}

func newTestWorker(t *testing.T, redisErr error, consumer *fakeRunner) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard}),
		Redis:    fakePinger{err: redisErr},
		PubSub:   fakePinger{},
		Consumer: consumer,
	})
	require.NoError(t, err)
	return svc
}

func TestWorkerStopsWhenDependencyDown(t *testing.T) {
	consumer := &fakeRunner{}
	svc := newTestWorker(t, errors.New("connection refused"), consumer)

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
	assert.False(t, consumer.ran)
}

func TestWorkerSurfacesConsumerFailure(t *testing.T) {
	consumer := &fakeRunner{err: errors.New("subscription deleted")}
	svc := newTestWorker(t, nil, consumer)

	err := svc.Run(context.Background())
	require.EqualError(t, err, "subscription deleted")
	assert.True(t, consumer.ran)
}

func TestWorkerReturnsContextErrorOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newTestWorker(t, nil, &fakeRunner{})

	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
}
