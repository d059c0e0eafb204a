package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
)

type fakeRetentionRepo struct {
	lastCutoff time.Time
	called     int
	err        error
}

func (f *fakeRetentionRepo) DeletePublishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	return 7, f.err
}

func (f *fakeRetentionRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	return 2, f.err
}

func newOutboxRetentionJob(t *testing.T, outboxRepo, dlqRepo *fakeRetentionRepo, retention int) *outboxRetentionJob {
	t.Helper()
	params := OutboxRetentionJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Outbox:    outboxRepo,
		Retention: retention,
	}
	if dlqRepo != nil {
		params.DLQ = dlqRepo
	}
	jobIface, err := NewOutboxRetentionJob(params)
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("expected outboxRetentionJob, got %T", jobIface)
	}
	return job
}

func TestOutboxRetentionJobDeletesPublishedRowsAndDeadLetters(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	outboxRepo := &fakeRetentionRepo{}
	dlqRepo := &fakeRetentionRepo{}
	job := newOutboxRetentionJob(t, outboxRepo, dlqRepo, 0)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-outboxRetentionDays * 24 * time.Hour)
	if !outboxRepo.lastCutoff.Equal(expectedCutoff) || !dlqRepo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got outbox=%s dlq=%s", expectedCutoff, outboxRepo.lastCutoff, dlqRepo.lastCutoff)
	}
	if outboxRepo.called != 1 || dlqRepo.called != 1 {
		t.Fatalf("expected one call each, got outbox=%d dlq=%d", outboxRepo.called, dlqRepo.called)
	}
}

func TestOutboxRetentionJobHonoursRetentionAndSkipsMissingDLQ(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	outboxRepo := &fakeRetentionRepo{}
	job := newOutboxRetentionJob(t, outboxRepo, nil, 7)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-7 * 24 * time.Hour); !outboxRepo.lastCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, outboxRepo.lastCutoff)
	}
}

func TestOutboxRetentionJobCombinesErrors(t *testing.T) {
	job := newOutboxRetentionJob(t,
		&fakeRetentionRepo{err: errors.New("outbox down")},
		&fakeRetentionRepo{err: errors.New("dlq down")}, 0)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"outbox down", "dlq down"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
