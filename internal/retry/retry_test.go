package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, BaseDelay: time.Millisecond, Factor: 2}
}

func TestDo_SuccessFirstTry(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(3), nil, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if attempts != 1 || calls != 1 {
		t.Errorf("expected 1 attempt and 1 call, got %d and %d", attempts, calls)
	}
}

func TestDo_RetryThenSuccess(t *testing.T) {
	calls := 0
	var waits []time.Duration
	notify := func(attempt int, err error, wait time.Duration) {
		waits = append(waits, wait)
	}
	attempts, err := Do(context.Background(), fastPolicy(3), notify, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(waits) != 2 || waits[0] != time.Millisecond || waits[1] != 2*time.Millisecond {
		t.Errorf("expected waits [1ms 2ms], got %v", waits)
	}
}

func TestDo_Exhausted(t *testing.T) {
	sentinel := errors.New("down")
	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(3), nil, func(context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
	if attempts != 3 || calls != 3 {
		t.Errorf("expected 3 attempts, got %d (calls %d)", attempts, calls)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	sentinel := errors.New("bad response")
	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(3), nil, func(context.Context) error {
		calls++
		return Permanent(sentinel)
	})
	if err != sentinel {
		t.Errorf("expected unwrapped sentinel, got %v", err)
	}
	if IsPermanent(err) {
		t.Error("expected permanent marker to be stripped")
	}
	if attempts != 1 || calls != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 5, BaseDelay: time.Hour}
	calls := 0
	done := make(chan struct{})
	var err error
	go func() {
		_, err = Do(ctx, p, nil, func(context.Context) error {
			calls++
			return errors.New("fail")
		})
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
	if err == nil || calls != 1 {
		t.Errorf("expected an error after 1 call, got %v after %d", err, calls)
	}
}

func TestPolicyDelay(t *testing.T) {
	p := DefaultPolicy()
	if p.Delay(0) != time.Second || p.Delay(1) != 2*time.Second || p.Delay(2) != 4*time.Second {
		t.Errorf("unexpected delays: %v %v %v", p.Delay(0), p.Delay(1), p.Delay(2))
	}
	p.MaxDelay = 3 * time.Second
	if p.Delay(2) != 3*time.Second {
		t.Errorf("expected capped delay 3s, got %v", p.Delay(2))
	}
}

func TestDoValue(t *testing.T) {
	v, attempts, err := DoValue(context.Background(), fastPolicy(2), nil, func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" || attempts != 1 {
		t.Errorf("expected ok/1/nil, got %q/%d/%v", v, attempts, err)
	}
}
