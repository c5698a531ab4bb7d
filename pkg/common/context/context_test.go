package context

import (
	"context"
	"testing"
	"time"
)

func TestIsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if IsCanceled(ctx) {
		t.Fatal("fresh context reported as canceled")
	}
	cancel()
	if !IsCanceled(ctx) {
		t.Fatal("canceled context not reported as canceled")
	}
}

func TestWithSignalParentCancel(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := WithSignal(parent, nil)
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("child context not canceled with parent")
	}
}

