package peer

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelayBefore(t *testing.T) {
	b := Backoff{
		Delay:      500 * time.Millisecond,
		Multiplier: 2.0,
		MaxDelay:   5 * time.Second,
		Retries:    3,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1 * time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := b.DelayBefore(tt.attempt); got != tt.want {
			t.Errorf("DelayBefore(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayBeforeCapsBelowSeed(t *testing.T) {
	b := Backoff{Delay: time.Second, Multiplier: 2.0, MaxDelay: 100 * time.Millisecond}
	if got := b.DelayBefore(1); got != 100*time.Millisecond {
		t.Errorf("DelayBefore(1) = %v, want the cap", got)
	}
}

func TestRunExhaustsAttempts(t *testing.T) {
	b := Backoff{Delay: time.Millisecond, Multiplier: 2.0, MaxDelay: 4 * time.Millisecond, Retries: 3}

	attempts := 0
	failure := errors.New("peer unreachable")
	err := b.Run(context.Background(), func(context.Context) error {
		attempts++
		return failure
	})
	if !errors.Is(err, failure) {
		t.Errorf("err = %v, want the last failure", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRunStopsOnSuccess(t *testing.T) {
	b := Backoff{Delay: time.Millisecond, Multiplier: 2.0, MaxDelay: 4 * time.Millisecond, Retries: 5}

	attempts := 0
	err := b.Run(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRunCancelAbortsPendingWait(t *testing.T) {
	b := Backoff{Delay: time.Hour, Multiplier: 2.0, MaxDelay: time.Hour, Retries: 3}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx, func(context.Context) error {
			t.Error("op ran despite cancelled wait")
			return nil
		})
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunCancelKeepsLastError(t *testing.T) {
	b := Backoff{Delay: time.Millisecond, Multiplier: 1.0, MaxDelay: time.Hour, Retries: 3}

	failure := errors.New("refused")
	ctx, cancel := context.WithCancel(context.Background())
	err := b.Run(ctx, func(context.Context) error {
		cancel()
		return failure
	})
	if !errors.Is(err, failure) {
		t.Errorf("err = %v, want the attempt's failure over ctx.Err()", err)
	}
}
