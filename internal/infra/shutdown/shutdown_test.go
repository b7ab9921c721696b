package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

func quietHandler(timeout time.Duration) *Handler {
	return NewHandler(timeout, slog.New(slog.DiscardHandler))
}

func TestNewHandler(t *testing.T) {
	h := NewHandler(5*time.Second, nil)
	if h.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", h.timeout)
	}
	if h.logger == nil {
		t.Error("logger should default")
	}

	select {
	case <-h.Done():
		t.Error("Done channel should not be closed initially")
	default:
	}
}

func TestHandler_ReverseOrderOnCancel(t *testing.T) {
	h := quietHandler(5 * time.Second)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"storage", "metrics", "http"} {
		h.OnShutdown(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.WaitContext(ctx); err != nil {
		t.Fatalf("WaitContext() = %v", err)
	}

	if strings.Join(order, ",") != "http,metrics,storage" {
		t.Errorf("order = %v", order)
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done channel should be closed after Wait completes")
	}
}

func TestHandler_Trigger(t *testing.T) {
	h := quietHandler(time.Second)
	ran := make(chan struct{}, 1)
	h.OnShutdown("flush", func(context.Context) error {
		ran <- struct{}{}
		return nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait() }()

	h.Trigger("listener failed")
	h.Trigger("second call is ignored")

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not complete after Trigger")
	}
	if len(ran) != 1 {
		t.Error("hook did not run")
	}
	if h.reason != "listener failed" {
		t.Errorf("reason = %q", h.reason)
	}
}

func TestHandler_Signal(t *testing.T) {
	h := quietHandler(time.Second)

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait() }()

	// Give Wait time to install the signal handler.
	time.Sleep(50 * time.Millisecond)
	syscall.Kill(syscall.Getpid(), syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not complete in time")
	}
}

func TestHandler_HookErrorsJoined(t *testing.T) {
	h := quietHandler(time.Second)
	errA := errors.New("flush failed")
	errB := errors.New("close failed")

	h.OnShutdown("a", func(context.Context) error { return errA })
	h.OnShutdown("ok", func(context.Context) error { return nil })
	h.OnShutdown("b", func(context.Context) error { return errB })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.WaitContext(ctx)

	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("err = %v, want both hook errors", err)
	}
	if !strings.Contains(err.Error(), "a: flush failed") {
		t.Errorf("err = %q, want hook name prefix", err)
	}
}

func TestHandler_HooksShareDeadline(t *testing.T) {
	h := quietHandler(100 * time.Millisecond)

	var deadline time.Time
	h.OnShutdown("flush", func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	h.WaitContext(ctx)

	if deadline.IsZero() || deadline.Sub(start) > time.Second {
		t.Errorf("deadline = %v", deadline)
	}
}

func TestHandler_ConcurrentOnShutdown(t *testing.T) {
	h := quietHandler(time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnShutdown("noop", func(context.Context) error { return nil })
		}()
	}
	wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.hooks) != 10 {
		t.Errorf("expected 10 hooks, got %d", len(h.hooks))
	}
}
