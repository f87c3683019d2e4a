package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func okHandler(ctx context.Context, inv *Invocation) error {
	return nil
}

func slowHandler(ctx context.Context, inv *Invocation) error {
	time.Sleep(200 * time.Millisecond)
	return nil
}

func TestLogging(t *testing.T) {
	handler := LoggingMiddleware(zap.NewNop())(okHandler)
	if err := handler(context.Background(), &Invocation{Event: "node.echo"}); err != nil {
		t.Fatalf("expect no error, got %v", err)
	}
}

func TestTimeoutPass(t *testing.T) {
	handler := TimeoutMiddleware(500 * time.Millisecond)(okHandler)
	if err := handler(context.Background(), &Invocation{Event: "node.echo"}); err != nil {
		t.Fatalf("expect no error, got %v", err)
	}
}

func TestTimeoutExceeded(t *testing.T) {
	handler := TimeoutMiddleware(50 * time.Millisecond)(slowHandler)
	err := handler(context.Background(), &Invocation{Event: "node.echo"})
	if !errors.Is(err, ErrInvocationTimeout) {
		t.Fatalf("expect ErrInvocationTimeout, got %v", err)
	}
}

func TestRateLimit(t *testing.T) {
	handler := RateLimitMiddleware(1, 2)(okHandler)
	inv := &Invocation{Event: "node.echo"}

	for i := 0; i < 2; i++ {
		if err := handler(context.Background(), inv); err != nil {
			t.Fatalf("request %d should pass, got error: %v", i, err)
		}
	}

	if err := handler(context.Background(), inv); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("request 3 should be rate limited, got: %v", err)
	}
}

func TestChain(t *testing.T) {
	chained := Chain(LoggingMiddleware(zap.NewNop()), TimeoutMiddleware(500*time.Millisecond))
	handler := chained(okHandler)

	if err := handler(context.Background(), &Invocation{Event: "node.echo"}); err != nil {
		t.Fatalf("expect no error, got %v", err)
	}
}
