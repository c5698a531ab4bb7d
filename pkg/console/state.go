package console

import "sync"

// State is the line state shared by every worker of one batch.
type State struct {
	mu                  sync.Mutex
	isAtBeginningOfLine bool
	lastWriterID        int
}

// NewState returns a state positioned at the beginning of a line with no
// previous writer.
func NewState() *State {
	return &State{isAtBeginningOfLine: true}
}

// IsAtBeginningOfLine reports whether the last write ended a line.
func (s *State) IsAtBeginningOfLine() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAtBeginningOfLine
}

// LastWriterID returns the id of the last worker that wrote, or 0.
func (s *State) LastWriterID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWriterID
}
