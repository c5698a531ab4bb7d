package console

import (
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sharpjs/PSConcurrent/pkg/common/validation"
	"github.com/sharpjs/PSConcurrent/pkg/metrics"
)

const module = "console"

// ContinuationMarker prefixes a worker's line that resumes after another
// worker interrupted it.
const ContinuationMarker = "(...) "

// DefaultHeader returns the header used for a worker that has none set.
func DefaultHeader(id int) string {
	return "Task " + strconv.Itoa(id)
}

// Option configures a Multiplexer.
type Option func(*Multiplexer)

// WithLogger sets the multiplexer's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Multiplexer) {
		if logger != nil {
			m.log = logger
		}
	}
}

// WithMetrics records writes and forced line breaks.
func WithMetrics(r *metrics.Registry, name string) Option {
	return func(m *Multiplexer) {
		m.metrics = r
		if name != "" {
			m.name = name
		}
	}
}

// WithState shares an existing line state instead of creating a new one.
func WithState(state *State) Option {
	return func(m *Multiplexer) {
		if state != nil {
			m.state = state
		}
	}
}

// Multiplexer serializes the writes of many workers onto one UI.
type Multiplexer struct {
	ui      UI
	state   *State
	name    string
	log     *zap.Logger
	metrics *metrics.Registry

	mu      sync.Mutex
	workers map[int]*WorkerUI
}

// New creates a multiplexer that writes to ui.
func New(ui UI, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		ui:      ui,
		name:    "console",
		log:     zap.NewNop(),
		workers: make(map[int]*WorkerUI),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.state == nil {
		m.state = NewState()
	}
	return m
}

// State returns the shared line state.
func (m *Multiplexer) State() *State {
	return m.state
}

// Host returns the underlying UI.
func (m *Multiplexer) Host() UI {
	return m.ui
}

// ForWorker returns the UI for worker id, creating it on first use.
func (m *Multiplexer) ForWorker(id int) *WorkerUI {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.workers[id]
	if !ok {
		w = &WorkerUI{m: m, id: id, header: DefaultHeader(id)}
		m.workers[id] = w
	}
	return w
}

// SetHeader sets the header of worker id.
func (m *Multiplexer) SetHeader(id int, header string) error {
	return m.ForWorker(id).SetHeader(header)
}

// prepare runs with the state lock held. It brings the console to the point
// where w may write text and returns the prefix to emit before it.
func (m *Multiplexer) prepare(w *WorkerUI) string {
	s := m.state
	if !s.isAtBeginningOfLine {
		if s.lastWriterID == w.id {
			return ""
		}
		// Another worker's line is open; end it.
		m.ui.WriteLine("")
		m.metrics.ConsoleLineBreak(m.name)
		m.log.Debug("forced line break",
			zap.Int("worker_id", w.id),
			zap.Int("interrupted_worker_id", s.lastWriterID),
		)
		s.isAtBeginningOfLine = true
	}

	prefix := "[" + w.header + "]: "
	if w.lineOpen {
		prefix += ContinuationMarker
	}
	return prefix
}

// update runs with the state lock held.
func (m *Multiplexer) update(w *WorkerUI, atBeginningOfLine bool) {
	m.state.isAtBeginningOfLine = atBeginningOfLine
	m.state.lastWriterID = w.id
	w.lineOpen = !atBeginningOfLine
}

// WorkerUI is the UI of one worker. It implements UI.
type WorkerUI struct {
	m  *Multiplexer
	id int

	// Guarded by the state lock. lineOpen is set while this worker's last
	// line has not been terminated.
	header   string
	lineOpen bool
}

var _ UI = (*WorkerUI)(nil)

// ID returns the worker id.
func (w *WorkerUI) ID() int {
	return w.id
}

// Header returns the current header.
func (w *WorkerUI) Header() string {
	w.m.state.mu.Lock()
	defer w.m.state.mu.Unlock()
	return w.header
}

// SetHeader replaces the header. An empty header fails with
// errors.ErrInvalidArgument.
func (w *WorkerUI) SetHeader(header string) error {
	if err := validation.ValidateNotEmpty(module, "header", header); err != nil {
		return err
	}
	w.m.state.mu.Lock()
	w.header = header
	w.m.state.mu.Unlock()
	return nil
}

// write prepares the console, then emits the prefix and text through emit.
func (w *WorkerUI) write(kind string, terminated bool, emit func(prefix string)) {
	s := w.m.state
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := w.m.prepare(w)
	emit(prefix)
	w.m.update(w, terminated)
	w.m.metrics.ConsoleWrite(kind)
}

// Write writes s without a line terminator.
func (w *WorkerUI) Write(s string) {
	w.write("text", strings.HasSuffix(s, "\n"), func(prefix string) {
		w.m.ui.Write(prefix + s)
	})
}

// WriteLine writes s and ends the line.
func (w *WorkerUI) WriteLine(s string) {
	w.write("line", true, func(prefix string) {
		w.m.ui.WriteLine(prefix + s)
	})
}

// WriteColored writes s in the given colors. The header keeps the host's
// default colors.
func (w *WorkerUI) WriteColored(fg, bg Color, s string) {
	w.write("colored", strings.HasSuffix(s, "\n"), func(prefix string) {
		if prefix != "" {
			w.m.ui.Write(prefix)
		}
		w.m.ui.WriteColored(fg, bg, s)
	})
}

// WriteDebugLine writes a debug line.
func (w *WorkerUI) WriteDebugLine(s string) {
	w.writeLevel("debug", s, w.m.ui.WriteDebugLine)
}

// WriteVerboseLine writes a verbose line.
func (w *WorkerUI) WriteVerboseLine(s string) {
	w.writeLevel("verbose", s, w.m.ui.WriteVerboseLine)
}

// WriteWarningLine writes a warning line.
func (w *WorkerUI) WriteWarningLine(s string) {
	w.writeLevel("warning", s, w.m.ui.WriteWarningLine)
}

// WriteErrorLine writes an error line.
func (w *WorkerUI) WriteErrorLine(s string) {
	w.writeLevel("error", s, w.m.ui.WriteErrorLine)
}

func (w *WorkerUI) writeLevel(kind, s string, fn func(string)) {
	w.write(kind, true, func(prefix string) {
		if prefix != "" {
			w.m.ui.Write(prefix)
		}
		fn(s)
	})
}

// WriteInformation passes record through unmodified.
func (w *WorkerUI) WriteInformation(record any) {
	w.m.ui.WriteInformation(record)
	w.m.metrics.ConsoleWrite("information")
}

// WriteProgress passes record through unmodified.
func (w *WorkerUI) WriteProgress(sourceID int64, record ProgressRecord) {
	w.m.ui.WriteProgress(sourceID, record)
	w.m.metrics.ConsoleWrite("progress")
}

// ReadLine writes the header and reads a line. Other workers wait until the
// read returns.
func (w *WorkerUI) ReadLine() (line string, err error) {
	w.write("read", true, func(prefix string) {
		w.m.ui.Write(prefix)
		line, err = w.m.ui.ReadLine()
	})
	return line, err
}

// ReadLineAsSecure writes the header and reads a line without echo.
func (w *WorkerUI) ReadLineAsSecure() (line string, err error) {
	w.write("read", true, func(prefix string) {
		w.m.ui.Write(prefix)
		line, err = w.m.ui.ReadLineAsSecure()
	})
	return line, err
}

// Prompt writes the header and prompts for fields.
func (w *WorkerUI) Prompt(caption, message string, fields []FieldDescription) (values map[string]string, err error) {
	w.write("prompt", true, func(prefix string) {
		w.m.ui.Write(prefix)
		values, err = w.m.ui.Prompt(caption, message, fields)
	})
	return values, err
}

// PromptForChoice passes through unmodified.
func (w *WorkerUI) PromptForChoice(caption, message string, choices []ChoiceDescription, defaultChoice int) (int, error) {
	return w.m.ui.PromptForChoice(caption, message, choices, defaultChoice)
}

// PromptForCredential passes through unmodified.
func (w *WorkerUI) PromptForCredential(caption, message, userName, targetName string) (*Credential, error) {
	return w.m.ui.PromptForCredential(caption, message, userName, targetName)
}
