package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-insights-go/internal/apierr"
	"call-insights-go/internal/logger"
)

// fakeTimer fires immediately and records every delay the executor asked for.
type fakeTimer struct {
	delays []time.Duration
	c      chan time.Time
}

func newFakeTimer() *fakeTimer { return &fakeTimer{c: make(chan time.Time, 1)} }

func (t *fakeTimer) Start(d time.Duration) {
	t.delays = append(t.delays, d)
	t.c <- time.Now()
}
func (t *fakeTimer) Stop()               {}
func (t *fakeTimer) C() <-chan time.Time { return t.c }

func testLogger() *logger.Logger { return logger.NewWith("test", "error") }

func TestDoSucceedsFirstAttempt(t *testing.T) {
	timer := newFakeTimer()
	e := New(testLogger(), 3, time.Second, 8*time.Second)
	e.Timer = timer

	calls := 0
	err := e.Do(context.Background(), "op", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, timer.delays)
}

func TestDoRetriesTransientWithExponentialDelays(t *testing.T) {
	timer := newFakeTimer()
	e := New(testLogger(), 3, time.Second, 8*time.Second)
	e.Timer = timer

	calls := 0
	err := e.Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return apierr.Transient("connection reset", errors.New("reset"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.delays)
}

func TestDoDelaysCappedAtMax(t *testing.T) {
	timer := newFakeTimer()
	e := New(testLogger(), 4, time.Second, 2*time.Second)
	e.Timer = timer

	calls := 0
	err := e.Do(context.Background(), "op", func() error {
		calls++
		return apierr.Transient("still down", errors.New("down"))
	})

	require.Error(t, err)
	assert.Equal(t, 5, calls) // initial attempt + 4 retries
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second}, timer.delays)
}

func TestDoFatalErrorNotRetried(t *testing.T) {
	timer := newFakeTimer()
	e := New(testLogger(), 3, time.Second, 8*time.Second)
	e.Timer = timer

	fatal := apierr.New("bad request", 400)
	calls := 0
	err := e.Do(context.Background(), "op", func() error {
		calls++
		return fatal
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, timer.delays)
}

func TestDoUnclassifiedErrorNotRetried(t *testing.T) {
	timer := newFakeTimer()
	e := New(testLogger(), 3, time.Second, 8*time.Second)
	e.Timer = timer

	boom := errors.New("boom")
	calls := 0
	err := e.Do(context.Background(), "op", func() error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, timer.delays)
}

func TestDoRateLimitHintOverridesDelay(t *testing.T) {
	timer := newFakeTimer()
	e := New(testLogger(), 3, time.Second, 60*time.Second)
	e.Timer = timer

	calls := 0
	err := e.Do(context.Background(), "op", func() error {
		calls++
		if calls == 1 {
			return apierr.RateLimit("too many requests", 5*time.Second)
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, timer.delays, 1)
	assert.Equal(t, 5*time.Second, timer.delays[0])
}

func TestDoRateLimitWithoutHintUsesComputedDelays(t *testing.T) {
	timer := newFakeTimer()
	e := New(testLogger(), 3, 2*time.Second, 60*time.Second)
	e.Timer = timer

	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	calls := 0
	err := e.Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return apierr.FromResponse("rate limited, no header", resp)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, timer.delays)
}

func TestDoRateLimitHintCappedAtMaxDelay(t *testing.T) {
	timer := newFakeTimer()
	e := New(testLogger(), 3, time.Second, 8*time.Second)
	e.Timer = timer

	calls := 0
	err := e.Do(context.Background(), "op", func() error {
		calls++
		if calls == 1 {
			return apierr.RateLimit("too many requests", 120*time.Second)
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, timer.delays, 1)
	assert.Equal(t, 8*time.Second, timer.delays[0])
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	timer := newFakeTimer()
	e := New(testLogger(), 2, time.Second, 8*time.Second)
	e.Timer = timer

	want := apierr.Transient("upstream down", errors.New("503"))
	calls := 0
	err := e.Do(context.Background(), "op", func() error {
		calls++
		return want
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, want)
	assert.Equal(t, 3, calls)
}
