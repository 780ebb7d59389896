package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// 192.0.2.1 is reserved for documentation (TEST-NET-1) and never routes, so
// this dial can only end by hitting the context deadline or an immediate
// network error. Either way the caller gets ErrUnavailable without hanging.
func TestDialWSBoundedByContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := DialWS(ctx, Config{URL: "ws://192.0.2.1:9"}, zap.NewNop())
	if err == nil {
		t.Fatal("dial to unroutable address should fail")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("dial not bounded by context deadline: took %v", elapsed)
	}
}
