package lifecycle

import (
	"context"
	"testing"
)

func TestStopOnUnstartedLifecycleIsANoOp(t *testing.T) {
	l := New(nil)
	if err := l.Stop(context.Background()); err != nil {
		t.Fatalf("Stop on an unstarted lifecycle should not error, got: %v", err)
	}
}

func TestLogfIsNilSafeWithoutLogger(t *testing.T) {
	l := New(nil)
	// must not panic
	l.logf("test message", "key", "value")
}
