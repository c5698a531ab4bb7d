package console

import (
	"io"
	"strings"
	"sync"
)

// Record is a structured record captured by a Recorder.
type Record struct {
	Kind     string // "information" or "progress"
	SourceID int64
	Value    any
}

// Recorder is an in-memory UI. It captures text in write order and answers
// reads from a scripted list of inputs. It is safe for concurrent use.
type Recorder struct {
	mu         sync.Mutex
	out        strings.Builder
	records    []Record
	inputs     []string
	choice     int
	choiceSet  bool
	credential *Credential
}

var _ UI = (*Recorder)(nil)

// NewRecorder returns a recorder that answers reads with inputs, in order.
func NewRecorder(inputs ...string) *Recorder {
	return &Recorder{inputs: inputs}
}

// SetChoice sets the answer to PromptForChoice.
func (r *Recorder) SetChoice(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.choice, r.choiceSet = index, true
}

// SetCredential sets the answer to PromptForCredential.
func (r *Recorder) SetCredential(c *Credential) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credential = c
}

// String returns all text written so far.
func (r *Recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.String()
}

// Lines returns the written text split into lines. A trailing partial line is
// included; a trailing newline does not produce an empty line.
func (r *Recorder) Lines() []string {
	s := strings.TrimSuffix(r.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Records returns the structured records written so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

func (r *Recorder) append(parts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range parts {
		r.out.WriteString(p)
	}
}

func (r *Recorder) Write(s string) { r.append(s) }
func (r *Recorder) WriteLine(s string) { r.append(s, "\n") }
func (r *Recorder) WriteColored(fg, bg Color, s string) { r.append(s) }
func (r *Recorder) WriteDebugLine(s string) { r.append(DebugPrefix, s, "\n") }
func (r *Recorder) WriteVerboseLine(s string) { r.append(VerbosePrefix, s, "\n") }
func (r *Recorder) WriteWarningLine(s string) { r.append(WarningPrefix, s, "\n") }
func (r *Recorder) WriteErrorLine(s string) { r.append(ErrorPrefix, s, "\n") }

// WriteInformation records the value without writing text.
func (r *Recorder) WriteInformation(record any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Kind: "information", Value: record})
}

// WriteProgress records the value without writing text.
func (r *Recorder) WriteProgress(sourceID int64, record ProgressRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Kind: "progress", SourceID: sourceID, Value: record})
}

// next pops the next scripted input. The answer is echoed like a terminal
// would, followed by a newline.
func (r *Recorder) next(echo bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.inputs) == 0 {
		return "", io.EOF
	}
	s := r.inputs[0]
	r.inputs = r.inputs[1:]
	if echo {
		r.out.WriteString(s)
	}
	r.out.WriteString("\n")
	return s, nil
}

// ReadLine returns the next scripted input.
func (r *Recorder) ReadLine() (string, error) {
	return r.next(true)
}

// ReadLineAsSecure returns the next scripted input without echoing it.
func (r *Recorder) ReadLineAsSecure() (string, error) {
	return r.next(false)
}

// Prompt answers each field with the next scripted input.
func (r *Recorder) Prompt(caption, message string, fields []FieldDescription) (map[string]string, error) {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		v, err := r.next(true)
		if err != nil {
			return nil, err
		}
		if v == "" {
			v = f.DefaultValue
		}
		values[f.Name] = v
	}
	return values, nil
}

// PromptForChoice returns the index set with SetChoice, or defaultChoice.
func (r *Recorder) PromptForChoice(caption, message string, choices []ChoiceDescription, defaultChoice int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.choiceSet {
		return r.choice, nil
	}
	return defaultChoice, nil
}

// PromptForCredential returns the credential set with SetCredential, or one
// carrying only userName.
func (r *Recorder) PromptForCredential(caption, message, userName, targetName string) (*Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.credential != nil {
		c := *r.credential
		return &c, nil
	}
	return &Credential{UserName: userName}, nil
}
