package mirror

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sharpjs/PSConcurrent/pkg/common/validation"
	"github.com/sharpjs/PSConcurrent/pkg/console"
	"github.com/sharpjs/PSConcurrent/pkg/metrics"
)

const module = "mirror"

// XAdder is the part of a Redis client used by Mirror. *redis.Client,
// *redis.ClusterClient and redis.UniversalClient all satisfy it.
type XAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Config holds configuration options for Mirror.
type Config struct {
	// Client publishes entries. Required.
	Client XAdder

	// Stream is the Redis stream key. Required.
	Stream string

	// BatchID is stored with every entry.
	BatchID string

	// MaxLen caps the stream length with approximate trimming.
	// Default: 10000. Set to -1 to disable trimming.
	MaxLen int64

	// BufferSize is the number of lines that may wait for publication.
	// Default: 256
	BufferSize int

	// Timeout bounds each XADD.
	// Default: 2 seconds
	Timeout time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration without a client or stream.
func DefaultConfig() Config {
	return Config{
		MaxLen:     10000,
		BufferSize: 256,
		Timeout:    2 * time.Second,
	}
}

type entry struct {
	kind string
	text string
}

// Mirror is a console.UI that forwards to another UI and publishes its text.
type Mirror struct {
	inner  console.UI
	config Config
	log    *zap.Logger

	mu      sync.Mutex
	partial strings.Builder
	kind    string
	closed  bool

	entries chan entry
	wg      sync.WaitGroup
	seq     int64
}

var _ console.UI = (*Mirror)(nil)

// New creates a mirror of inner and starts its publisher goroutine.
func New(inner console.UI, config Config) (*Mirror, error) {
	if err := validation.ValidateNotNil(module, "inner", inner); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil(module, "client", config.Client); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotEmpty(module, "stream", config.Stream); err != nil {
		return nil, err
	}

	defaults := DefaultConfig()
	if config.MaxLen == 0 {
		config.MaxLen = defaults.MaxLen
	}
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	m := &Mirror{
		inner:   inner,
		config:  config,
		log:     config.Logger.With(zap.String("stream", config.Stream)),
		entries: make(chan entry, config.BufferSize),
	}

	m.wg.Add(1)
	go m.publishLoop()

	return m, nil
}

// Close publishes any partial line and waits for pending entries.
func (m *Mirror) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	if m.partial.Len() > 0 {
		m.flushLocked()
	}
	m.closed = true
	close(m.entries)
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

// feed appends text and queues every completed line.
func (m *Mirror) feed(kind, s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			break
		}
		m.partial.WriteString(s[:i])
		m.kindFor(kind)
		m.flushLocked()
		s = s[i+1:]
	}
	if s != "" {
		m.partial.WriteString(s)
		m.kindFor(kind)
	}
}

// kindFor keeps the most specific kind seen on the current line.
func (m *Mirror) kindFor(kind string) {
	if m.kind == "" || m.kind == "text" {
		m.kind = kind
	}
}

// endLine queues the current partial line, if any.
func (m *Mirror) endLine() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed && m.partial.Len() > 0 {
		m.flushLocked()
	}
}

func (m *Mirror) flushLocked() {
	e := entry{kind: m.kind, text: m.partial.String()}
	if e.kind == "" {
		e.kind = "text"
	}
	m.partial.Reset()
	m.kind = ""
	m.enqueueLocked(e)
}

func (m *Mirror) enqueueLocked(e entry) {
	select {
	case m.entries <- e:
	default:
		m.config.Metrics.MirrorFailed(m.config.Stream)
		m.log.Warn("mirror buffer full, dropping line")
	}
}

func (m *Mirror) publishLoop() {
	defer m.wg.Done()
	for e := range m.entries {
		m.publish(e)
	}
}

func (m *Mirror) publish(e entry) {
	m.seq++

	ctx, cancel := context.WithTimeout(context.Background(), m.config.Timeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: m.config.Stream,
		Values: map[string]interface{}{
			"kind":  e.kind,
			"text":  e.text,
			"batch": m.config.BatchID,
			"seq":   m.seq,
		},
	}
	if m.config.MaxLen > 0 {
		args.MaxLen = m.config.MaxLen
		args.Approx = true
	}

	if err := m.config.Client.XAdd(ctx, args).Err(); err != nil {
		m.config.Metrics.MirrorFailed(m.config.Stream)
		m.log.Warn("XADD failed", zap.Error(err), zap.Int64("seq", m.seq))
	}
}

// Write forwards s and publishes it once its line is complete.
func (m *Mirror) Write(s string) {
	m.inner.Write(s)
	m.feed("text", s)
}

// WriteLine forwards s and publishes it as a line.
func (m *Mirror) WriteLine(s string) {
	m.inner.WriteLine(s)
	m.feed("text", s+"\n")
}

// WriteColored forwards s with its colors. Only the text is published.
func (m *Mirror) WriteColored(fg, bg console.Color, s string) {
	m.inner.WriteColored(fg, bg, s)
	m.feed("text", s)
}

// WriteDebugLine forwards s and publishes it with the debug prefix.
func (m *Mirror) WriteDebugLine(s string) {
	m.inner.WriteDebugLine(s)
	m.feed("debug", console.DebugPrefix+s+"\n")
}

// WriteVerboseLine forwards s and publishes it with the verbose prefix.
func (m *Mirror) WriteVerboseLine(s string) {
	m.inner.WriteVerboseLine(s)
	m.feed("verbose", console.VerbosePrefix+s+"\n")
}

// WriteWarningLine forwards s and publishes it with the warning prefix.
func (m *Mirror) WriteWarningLine(s string) {
	m.inner.WriteWarningLine(s)
	m.feed("warning", console.WarningPrefix+s+"\n")
}

// WriteErrorLine forwards s and publishes it with the error prefix.
func (m *Mirror) WriteErrorLine(s string) {
	m.inner.WriteErrorLine(s)
	m.feed("error", console.ErrorPrefix+s+"\n")
}

// WriteInformation forwards record and publishes its text form.
func (m *Mirror) WriteInformation(record any) {
	m.inner.WriteInformation(record)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.enqueueLocked(entry{kind: "information", text: fmt.Sprint(record)})
	}
}

// WriteProgress forwards record. Progress is not published.
func (m *Mirror) WriteProgress(sourceID int64, record console.ProgressRecord) {
	m.inner.WriteProgress(sourceID, record)
}

// ReadLine forwards the read. The input itself is not published.
func (m *Mirror) ReadLine() (string, error) {
	defer m.endLine()
	return m.inner.ReadLine()
}

// ReadLineAsSecure forwards the read. The input is never published.
func (m *Mirror) ReadLineAsSecure() (string, error) {
	defer m.endLine()
	return m.inner.ReadLineAsSecure()
}

// Prompt forwards the prompt. The answers are not published.
func (m *Mirror) Prompt(caption, message string, fields []console.FieldDescription) (map[string]string, error) {
	defer m.endLine()
	return m.inner.Prompt(caption, message, fields)
}

// PromptForChoice forwards the prompt. The choice is not published.
func (m *Mirror) PromptForChoice(caption, message string, choices []console.ChoiceDescription, defaultChoice int) (int, error) {
	return m.inner.PromptForChoice(caption, message, choices, defaultChoice)
}

// PromptForCredential forwards the prompt. The credential is never published.
func (m *Mirror) PromptForCredential(caption, message, userName, targetName string) (*console.Credential, error) {
	return m.inner.PromptForCredential(caption, message, userName, targetName)
}
