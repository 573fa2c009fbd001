package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestNewShutdownManager(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{
			name:            "with custom timeout",
			timeout:         10 * time.Second,
			expectedTimeout: 10 * time.Second,
		},
		{
			name:            "with zero timeout uses default",
			timeout:         0,
			expectedTimeout: 30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(InfoLevel, io.Discard)
			server := &http.Server{}

			sm := NewShutdownManager(logger, server, tt.timeout)

			if sm == nil {
				t.Fatal("Expected non-nil shutdown manager")
			}

			if sm.shutdownTimeout != tt.expectedTimeout {
				t.Errorf("Expected timeout %v, got %v", tt.expectedTimeout, sm.shutdownTimeout)
			}

			if len(sm.shutdownFuncs) != 0 {
				t.Error("Expected empty shutdown functions slice")
			}
		})
	}
}

func TestShutdown_RunsRegisteredFuncs(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	var mu sync.Mutex
	calls := 0

	for i := 0; i < 3; i++ {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			mu.Lock()
			calls++
			mu.Unlock()
			return nil
		})
	}

	if err := sm.Shutdown(); err != nil {
		t.Errorf("Expected no error but got: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Errorf("Expected 3 shutdown functions to run, got %d", calls)
	}
}

func TestShutdown_CollectsErrors(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return errors.New("close failed")
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return nil
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return errors.New("also failed")
	})

	err := sm.Shutdown()
	if err == nil {
		t.Fatal("Expected error but got nil")
	}

	if err.Error() != "shutdown completed with 2 errors" {
		t.Errorf("Expected 'shutdown completed with 2 errors', got %v", err)
	}
}

func TestShutdown_RespectsTimeout(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 200*time.Millisecond)

	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		select {
		case <-time.After(2 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	start := time.Now()
	err := sm.Shutdown()
	elapsed := time.Since(start)

	if err == nil {
		t.Error("Expected timeout error but got nil")
	}

	if err.Error() != "shutdown timeout reached" {
		t.Errorf("Expected 'shutdown timeout reached', got %v", err)
	}

	if elapsed > time.Second {
		t.Errorf("Shutdown took too long: %v", elapsed)
	}
}

func TestShutdown_SkipsNilFuncs(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	sm.RegisterShutdownFunc(nil)
	sm.RegisterShutdownFunc(nil)

	if err := sm.Shutdown(); err != nil {
		t.Errorf("Expected no error but got: %v", err)
	}
}

func TestShutdown_DrainsServer(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)

	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server.Start()
	defer server.Close()

	sm := NewShutdownManager(logger, server.Config, 5*time.Second)

	if err := sm.Shutdown(); err != nil {
		t.Errorf("Expected no error but got: %v", err)
	}
}

func TestShutdown_FuncsGetDeadline(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 2*time.Second)

	var hasDeadline bool
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})

	if err := sm.Shutdown(); err != nil {
		t.Errorf("Expected no error but got: %v", err)
	}

	if !hasDeadline {
		t.Error("Context should carry the shutdown deadline")
	}
}
