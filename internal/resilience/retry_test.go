package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("busy"), 503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(4), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always busy"), 500)
	})
	if err == nil || err.Error() != "always busy" {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	var calls int
	_ = Do(context.Background(), fastRetry(5), func(_ context.Context) error {
		calls++
		return errors.New("unsupported document format")
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancelledStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry(10)
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	var calls int
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(_ context.Context) error {
			calls++
			return NewTransientError(errors.New("busy"), 503)
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error")
		}
	case <-time.After(time.Second):
		t.Fatal("retry did not stop on cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_CustomShouldRetryAndOnRetry(t *testing.T) {
	retryable := errors.New("retry me")
	cfg := fastRetry(3)
	cfg.ShouldRetry = func(err error) bool { return errors.Is(err, retryable) }

	var retried []int
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	var calls int
	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return retryable
	})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("unexpected retry callbacks %v", retried)
	}
}

func TestDoVal(t *testing.T) {
	var calls int
	v, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "partial", NewTransientError(errors.New("busy"), 429)
		}
		return "done", nil
	})
	if err != nil || v != "done" {
		t.Fatalf("got %q, %v", v, err)
	}

	v, err = DoVal(context.Background(), fastRetry(1), func(_ context.Context) (string, error) {
		return "partial", errors.New("bad")
	})
	if err == nil || v != "" {
		t.Errorf("expected zero value on failure, got %q, %v", v, err)
	}
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}.withDefaults()
	cfg.JitterFraction = 0

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second}
	for i, w := range want {
		if got := backoff(i, cfg); got != w {
			t.Errorf("attempt %d: got %v, want %v", i, got, w)
		}
	}

	cfg.JitterFraction = 0.5
	for i := 0; i < 100; i++ {
		d := backoff(0, cfg)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay %v outside [50ms, 150ms]", d)
		}
	}
}

func TestRetryLogger(t *testing.T) {
	RetryLogger("docintel", "analyze")(1, errors.New("busy"))
}
