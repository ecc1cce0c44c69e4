package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

// instantSleep records requested waits without actually waiting.
func instantSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	var waits []time.Duration
	p := DefaultRetryPolicy()
	p.sleep = instantSleep(&waits)

	calls := 0
	got, err := p.Do(context.Background(), nil, func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "ok" || calls != 1 || len(waits) != 0 {
		t.Errorf("got %q, calls=%d, waits=%v", got, calls, waits)
	}
}

func TestRetryRecoversAfterFailure(t *testing.T) {
	var waits []time.Duration
	p := DefaultRetryPolicy()
	p.sleep = instantSleep(&waits)

	calls := 0
	got, err := p.Do(context.Background(), nil, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "recovered" || calls != 3 {
		t.Errorf("got %q after %d calls", got, calls)
	}
	if len(waits) != 2 {
		t.Fatalf("expected 2 backoff waits, got %v", waits)
	}

	// Exponential base with jitter: base*2^n <= wait < base*2^n + jitter.
	for i, w := range waits {
		min := time.Second << i
		max := min + time.Second
		if w < min || w >= max {
			t.Errorf("wait[%d] = %v, want in [%v, %v)", i, w, min, max)
		}
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	var waits []time.Duration
	p := DefaultRetryPolicy()
	p.sleep = instantSleep(&waits)

	boom := &GatewayError{Backend: "gpt", Status: 503, Body: "overloaded"}
	calls := 0
	_, err := p.Do(context.Background(), nil, func() (string, error) {
		calls++
		return "", boom
	})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// No wait after the final attempt; the error surfaces as-is.
	if len(waits) != 2 {
		t.Errorf("waits = %d, want 2", len(waits))
	}
	var ge *GatewayError
	if !errors.As(err, &ge) || ge.Status != 503 {
		t.Errorf("err = %v, want the final GatewayError", err)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultRetryPolicy()
	p.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := p.Do(ctx, nil, func() (string, error) {
		return "", errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestGatewayErrorMessage(t *testing.T) {
	err := &GatewayError{Backend: "gemini", Status: 429, Body: "quota"}
	want := "gemini API error 429: quota"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
