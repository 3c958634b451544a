package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream 503")

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		failFirst int
		retryIf   func(error) bool
		wantCalls int
		wantErr   bool
	}{
		{"first call succeeds", 0, nil, 1, false},
		{"recovers on third", 2, nil, 3, false},
		{"exhausts attempts", 5, nil, 3, true},
		{"permanent error", 5, func(error) bool { return false }, 1, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := fastRetry(3)
			cfg.RetryIf = tc.retryIf
			calls := 0
			got, err := Retry(context.Background(), cfg, func() (string, error) {
				calls++
				if calls <= tc.failFirst {
					return "", errUpstream
				}
				return "ok", nil
			})
			if calls != tc.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tc.wantCalls)
			}
			if tc.wantErr != (err != nil) {
				t.Errorf("err = %v", err)
			}
			if !tc.wantErr && got != "ok" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour}
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	_, err := Retry(ctx, cfg, func() (int, error) { return 0, errUpstream })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want canceled", err)
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, BackoffFactor: 2}
	cfg.applyDefaults()
	for attempt, want := range map[int]time.Duration{1: time.Second, 2: 2 * time.Second, 5: 3 * time.Second} {
		if got := cfg.backoff(attempt); got != want {
			t.Errorf("backoff(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	now := time.Unix(0, 0)
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "llm",
		MaxFailures: 2,
		OpenTimeout: time.Minute,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})
	cb.now = func() time.Time { return now }
	fail := func() error { return errUpstream }

	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
	called := false
	if err := cb.Execute(func() error { called = true; return nil }); !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("open circuit should reject, err = %v", err)
	}

	now = now.Add(time.Minute)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions = %v, want %v", transitions, want)
		}
	}
}

func TestCircuitBreakerIgnoresClientErrors(t *testing.T) {
	errBadRequest := errors.New("400")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return !errors.Is(err, errBadRequest) },
	})
	_ = cb.Execute(func() error { return errBadRequest })
	if cb.State() != StateClosed {
		t.Errorf("client errors should not open the circuit")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 100, Burst: 2})
	if !rl.Allow() || !rl.Allow() {
		t.Fatal("burst should allow two calls")
	}
	if rl.Allow() {
		t.Error("third immediate call should be limited")
	}

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > time.Second {
		t.Error("wait took far longer than one token interval")
	}

	slow := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	slow.Allow()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := slow.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}

func TestBulkhead(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := b.Execute(context.Background(), func() error { return nil }); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("err = %v, want full", err)
	}
	close(release)

	waiting := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: time.Second})
	var ran atomic.Int32
	got, err := ExecuteWithResult(context.Background(), waiting, func() (int, error) {
		ran.Add(1)
		return 7, nil
	})
	if err != nil || got != 7 || ran.Load() != 1 {
		t.Errorf("ExecuteWithResult = %d, %v", got, err)
	}
	if waiting.InUse() != 0 {
		t.Errorf("slot not released")
	}
}
