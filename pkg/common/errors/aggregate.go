package errors

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
)

// CompositeError bundles several leaf errors. A CompositeError built by this
// package never contains another composite.
type CompositeError struct {
	errs []error
}

// NewCompositeError flattens errs into a single composite. Nil entries are dropped.
func NewCompositeError(errs ...error) *CompositeError {
	var leaves []error
	for _, err := range errs {
		leaves = append(leaves, Flatten(err)...)
	}
	return &CompositeError{errs: leaves}
}

// Error implements the error interface.
func (e *CompositeError) Error() string {
	var b strings.Builder
	b.WriteString(pluralize(len(e.errs)))
	for _, err := range e.errs {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Errors returns a copy of the leaf errors.
func (e *CompositeError) Errors() []error {
	out := make([]error, len(e.errs))
	copy(out, e.errs)
	return out
}

// Unwrap exposes the leaves to errors.Is and errors.As.
func (e *CompositeError) Unwrap() []error {
	return e.Errors()
}

func pluralize(n int) string {
	if n == 1 {
		return "1 job failed:"
	}
	return fmt.Sprintf("%d jobs failed:", n)
}

// Flatten returns the leaf errors of err. Any error exposing Unwrap() []error
// (CompositeError, errors.Join, multierr, fmt.Errorf with several %w verbs) is a
// composite and is expanded recursively; everything else is a leaf.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	group, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}
	var leaves []error
	for _, child := range group.Unwrap() {
		leaves = append(leaves, Flatten(child)...)
	}
	return leaves
}

// Collector is an append-only, concurrency-safe collection of leaf errors.
type Collector struct {
	mu  sync.Mutex
	err error
	n   int
}

// Add flattens err and appends its leaves. It reports whether this was the
// first error ever added. Nil is ignored.
func (c *Collector) Add(err error) (first bool) {
	leaves := Flatten(err)
	if len(leaves) == 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	first = c.n == 0
	for _, leaf := range leaves {
		c.err = multierr.Append(c.err, leaf)
		c.n++
	}
	return first
}

// Len returns the number of leaf errors collected so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Err returns nil when nothing was collected, the single leaf unchanged when
// exactly one error was collected, and a *CompositeError otherwise.
func (c *Collector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	leaves := multierr.Errors(c.err)
	switch len(leaves) {
	case 0:
		return nil
	case 1:
		return leaves[0]
	default:
		return &CompositeError{errs: leaves}
	}
}
