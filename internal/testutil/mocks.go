package testutil

import (
	"bytes"
	"errors"
	"sync"
)

// ErrWriteFailed is returned by a MockWriter set to fail.
var ErrWriteFailed = errors.New("simulated write failure")

// MockWriter is a concurrency-safe io.Writer that counts Write calls and can
// fail on demand, standing in for a console or pipe.
type MockWriter struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	writes     int
	failOnNth  int
	failAlways bool
}

// NewMockWriter creates an empty MockWriter.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write implements io.Writer.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.writes++
	if mw.failAlways || mw.writes == mw.failOnNth {
		return 0, ErrWriteFailed
	}
	return mw.buf.Write(p)
}

// String returns everything written successfully.
func (mw *MockWriter) String() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.String()
}

// WriteCount returns the number of Write calls, failed ones included.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.writes
}

// FailOnNth makes the nth Write call fail.
func (mw *MockWriter) FailOnNth(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.failOnNth = n
}

// FailAlways makes every following Write call fail.
func (mw *MockWriter) FailAlways() {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.failAlways = true
}
