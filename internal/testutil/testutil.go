// Package testutil holds assertion and synchronization helpers shared by the
// psconcurrent test suites.
package testutil

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// TestTimeout is the default timeout for tests
const TestTimeout = 5 * time.Second

// WithTimeout creates a context with the default test timeout
func WithTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), TestTimeout)
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertErrorIs fails the test unless errors.Is(err, target)
func AssertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("got error %v, want %v", err, target)
	}
}

// AssertEqual fails the test if got != want
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// AssertPanics fails the test if fn returns without panicking
func AssertPanics(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	fn()
}

// Eventually polls condition every tick until it returns true or waitFor elapses
func Eventually(t *testing.T, condition func() bool, waitFor, tick time.Duration) {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", waitFor)
		}
		time.Sleep(tick)
	}
}

// WaitClosed fails the test if ch is not closed within TestTimeout
func WaitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(TestTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// MaxTracker records the highest value of a concurrently updated counter.
type MaxTracker struct {
	current atomic.Int64
	max     atomic.Int64
}

// Enter increments the counter and updates the maximum.
func (m *MaxTracker) Enter() {
	n := m.current.Add(1)
	for {
		old := m.max.Load()
		if n <= old || m.max.CompareAndSwap(old, n) {
			return
		}
	}
}

// Leave decrements the counter.
func (m *MaxTracker) Leave() {
	m.current.Add(-1)
}

// Max returns the highest value observed.
func (m *MaxTracker) Max() int64 {
	return m.max.Load()
}

// Current returns the current value.
func (m *MaxTracker) Current() int64 {
	return m.current.Load()
}
