// Package jobpoll drives a submit/poll/terminate protocol against an
// asynchronous job API. Submission and each poll attempt go through the
// backoff executor; a poll attempt that exhausts its own retries is logged
// and the loop moves on to the next interval.
package jobpoll

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"call-insights-go/internal/apierr"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/retry"
)

// Terminal job states as reported by the upstream service. Anything else is
// treated as in-progress.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Update is one status check's result.
type Update struct {
	Status string
	Output json.RawMessage
	Error  string
}

// Service is the upstream job API: submit once, then poll the returned handle.
type Service interface {
	Submit(ctx context.Context) (handle string, err error)
	Poll(ctx context.Context, handle string) (Update, error)
}

type Poller struct {
	Interval      time.Duration
	MaxPolls      int
	ProgressEvery int

	submit *retry.Executor
	check  *retry.Executor
	log    *logger.Logger

	// sleep is replaceable in tests.
	sleep func(context.Context, time.Duration) error
}

// New builds a poller. submit carries the full retry budget; check is the
// smaller per-poll budget.
func New(log *logger.Logger, submit, check *retry.Executor, interval time.Duration, maxPolls, progressEvery int) *Poller {
	return &Poller{
		Interval:      interval,
		MaxPolls:      maxPolls,
		ProgressEvery: progressEvery,
		submit:        submit,
		check:         check,
		log:           log,
		sleep:         sleepCtx,
	}
}

// Run submits the job and polls until a terminal state or the poll ceiling.
// Reaching the ceiling returns a retryable timeout so the caller may resubmit.
func (p *Poller) Run(ctx context.Context, svc Service) (json.RawMessage, error) {
	var handle string
	err := p.submit.Do(ctx, "job submit", func() error {
		h, err := svc.Submit(ctx)
		if err != nil {
			return err
		}
		handle = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := p.log.WithField("job", handle)
	log.Info("job submitted, polling for completion")

	for poll := 1; poll <= p.MaxPolls; poll++ {
		var up Update
		err := p.check.Do(ctx, "job poll", func() error {
			u, err := svc.Poll(ctx, handle)
			if err != nil {
				return err
			}
			up = u
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			log.WithError(err).WithField("poll", poll).Warn("poll attempt failed, continuing")
		} else {
			switch up.Status {
			case StatusSucceeded:
				return up.Output, nil
			case StatusFailed:
				return nil, apierr.New(fmt.Sprintf("job failed: %s", up.Error), http.StatusBadGateway)
			case StatusCanceled:
				return nil, apierr.New("job was canceled", http.StatusBadGateway)
			}
		}

		if p.ProgressEvery > 0 && poll%p.ProgressEvery == 0 {
			log.WithFields(logrus.Fields{
				"poll":    poll,
				"elapsed": (time.Duration(poll) * p.Interval).String(),
			}).Info("job still in progress")
		}

		if poll < p.MaxPolls {
			if err := p.sleep(ctx, p.Interval); err != nil {
				return nil, err
			}
		}
	}

	total := time.Duration(p.MaxPolls) * p.Interval
	return nil, &apierr.Error{
		Message:    fmt.Sprintf("job timed out after %s", total),
		StatusCode: http.StatusGatewayTimeout,
		Retryable:  true,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
