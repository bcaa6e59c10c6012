package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrying wraps a Backend with exponential backoff for transient failures.
// Errors that IsRecoverable rejects are returned after the first attempt.
type Retrying struct {
	Backend    Backend
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Metrics    *Metrics
	Logger     *slog.Logger
}

func (r *Retrying) Complete(ctx context.Context, req Request) (Response, error) {
	var resp Response
	op := func() error {
		out, err := r.Backend.Complete(ctx, req)
		if err != nil {
			if !IsRecoverable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.BaseDelay
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Second
	}
	if r.MaxDelay > 0 {
		b.MaxInterval = r.MaxDelay
	}
	b.MaxElapsedTime = 0

	retries := r.MaxRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	notify := func(err error, wait time.Duration) {
		r.Metrics.Retry()
		if r.Logger != nil {
			r.Logger.Warn("backend call failed, retrying",
				"purpose", req.Purpose, "wait", wait.Round(time.Millisecond), "err", err)
		}
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return Response{}, err
	}
	return resp, nil
}
