package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
	"github.com/ombhut175/RetailFlow-sub002/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Interval between cycles; zero means daily.
	Interval time.Duration
	// JobTimeout caps each job run; zero leaves jobs unbounded.
	JobTimeout time.Duration
}

// Service runs every registered job once per cycle while holding the
// cluster-wide lock.
type Service struct {
	logg       *logger.Logger
	jobs       *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

// JobResult is the outcome of one job inside a cycle.
type JobResult struct {
	Job      string
	Duration time.Duration
	Err      error
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("cron: logger required")
	case params.Lock == nil:
		return nil, errors.New("cron: lock required")
	}
	s := &Service{
		logg:       params.Logger,
		jobs:       params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if s.jobs == nil {
		s.jobs = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs one cycle. Job failures are logged and counted but only a
// lock failure is returned.
func (s *Service) RunOnce(ctx context.Context) error {
	_, err := s.cycle(ctx)
	return err
}

func (s *Service) cycle(ctx context.Context) ([]JobResult, error) {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire cron lock: %w", err)
	}
	if !held {
		s.metrics.IncSkippedCycle()
		s.logg.Info(ctx, "cron lock held elsewhere; cycle skipped")
		return nil, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()

	jobs := s.jobs.Jobs()
	results := make([]JobResult, 0, len(jobs))
	failed := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		res := s.runJob(ctx, job)
		if res.Err != nil {
			failed++
		}
		results = append(results, res)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":   len(results),
		"failed": failed,
	}), "cron cycle finished")
	return results, nil
}

func (s *Service) runJob(ctx context.Context, job Job) JobResult {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	started := time.Now()
	err := runGuarded(ctx, job)
	res := JobResult{Job: job.Name(), Duration: time.Since(started), Err: err}
	s.metrics.ObserveRun(res.Job, res.Duration, err)

	ctx = s.logg.WithField(ctx, "duration_ms", res.Duration.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
	} else {
		s.logg.Info(ctx, "cron job done")
	}
	return res
}

func runGuarded(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}
