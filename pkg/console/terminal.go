package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	pcerrors "github.com/sharpjs/PSConcurrent/pkg/common/errors"
)

// Level line prefixes.
const (
	DebugPrefix   = "DEBUG: "
	VerbosePrefix = "VERBOSE: "
	WarningPrefix = "WARNING: "
	ErrorPrefix   = "ERROR: "
)

// ansi maps console colors to ANSI palette indices.
var ansi = [...]string{
	Black: "0", DarkBlue: "4", DarkGreen: "2", DarkCyan: "6",
	DarkRed: "1", DarkMagenta: "5", DarkYellow: "3", Gray: "7",
	DarkGray: "8", Blue: "12", Green: "10", Cyan: "14",
	Red: "9", Magenta: "13", Yellow: "11", White: "15",
}

// TerminalOption configures a TerminalUI.
type TerminalOption func(*TerminalUI)

// WithNoColor disables all styling.
func WithNoColor() TerminalOption {
	return func(t *TerminalUI) {
		t.renderer.SetColorProfile(termenv.Ascii)
	}
}

// WithRecordWriter sets where information and progress records are written.
// They are discarded by default.
func WithRecordWriter(w io.Writer) TerminalOption {
	return func(t *TerminalUI) {
		if w != nil {
			t.records = w
		}
	}
}

// TerminalUI is a UI over a text stream and an input stream.
type TerminalUI struct {
	mu       sync.Mutex
	out      io.Writer
	records  io.Writer
	in       *bufio.Reader
	inFd     int // -1 unless in is a terminal
	renderer *lipgloss.Renderer

	levelStyle lipgloss.Style
	errorStyle lipgloss.Style
}

var _ UI = (*TerminalUI)(nil)

// NewTerminalUI creates a UI writing to out and reading from in. Colors are
// used when out is a color-capable terminal.
func NewTerminalUI(out io.Writer, in io.Reader, opts ...TerminalOption) *TerminalUI {
	t := &TerminalUI{
		out:      out,
		records:  io.Discard,
		in:       bufio.NewReader(in),
		inFd:     -1,
		renderer: lipgloss.NewRenderer(out),
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.inFd = int(f.Fd())
	}
	for _, opt := range opts {
		opt(t)
	}

	t.levelStyle = t.renderer.NewStyle().Foreground(lipgloss.Color(ansi[Yellow]))
	t.errorStyle = t.renderer.NewStyle().Foreground(lipgloss.Color(ansi[Red]))
	return t
}

// paint renders s line by line so styling never swallows line breaks.
func paint(style lipgloss.Style, s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func (t *TerminalUI) print(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.out, s)
}

// Write writes s.
func (t *TerminalUI) Write(s string) {
	t.print(s)
}

// WriteLine writes s and a newline.
func (t *TerminalUI) WriteLine(s string) {
	t.print(s + "\n")
}

// WriteColored writes s in the given colors.
func (t *TerminalUI) WriteColored(fg, bg Color, s string) {
	style := t.renderer.NewStyle()
	if fg.valid() {
		style = style.Foreground(lipgloss.Color(ansi[fg]))
	}
	if bg.valid() {
		style = style.Background(lipgloss.Color(ansi[bg]))
	}
	t.print(paint(style, s))
}

func (t *TerminalUI) WriteDebugLine(s string) {
	t.print(paint(t.levelStyle, DebugPrefix+s) + "\n")
}

func (t *TerminalUI) WriteVerboseLine(s string) {
	t.print(paint(t.levelStyle, VerbosePrefix+s) + "\n")
}

func (t *TerminalUI) WriteWarningLine(s string) {
	t.print(paint(t.levelStyle, WarningPrefix+s) + "\n")
}

func (t *TerminalUI) WriteErrorLine(s string) {
	t.print(paint(t.errorStyle, ErrorPrefix+s) + "\n")
}

// WriteInformation writes record to the record writer.
func (t *TerminalUI) WriteInformation(record any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintln(t.records, record)
}

// WriteProgress writes a one-line summary of record to the record writer.
func (t *TerminalUI) WriteProgress(sourceID int64, record ProgressRecord) {
	line := record.Activity
	if record.StatusDescription != "" {
		line += ": " + record.StatusDescription
	}
	switch {
	case record.Completed:
		line += " (completed)"
	case record.PercentComplete >= 0:
		line += fmt.Sprintf(" [%d%%]", record.PercentComplete)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintln(t.records, line)
}

// ReadLine reads one line without its terminator. A final line without a
// terminator is returned with a nil error.
func (t *TerminalUI) ReadLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadLineAsSecure reads a line without echo when input is a terminal.
func (t *TerminalUI) ReadLineAsSecure() (string, error) {
	if t.inFd < 0 {
		return t.ReadLine()
	}
	b, err := term.ReadPassword(t.inFd)
	t.print("\n")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (t *TerminalUI) writeCaption(caption, message string) {
	if caption != "" {
		t.WriteLine(caption)
	}
	if message != "" {
		t.WriteLine(message)
	}
}

// Prompt asks for each field in turn. An empty answer takes the field's
// default; a mandatory field without a default is asked again.
func (t *TerminalUI) Prompt(caption, message string, fields []FieldDescription) (map[string]string, error) {
	t.writeCaption(caption, message)

	values := make(map[string]string, len(fields))
	for _, f := range fields {
		label := f.Label
		if label == "" {
			label = f.Name
		}
		if f.DefaultValue != "" {
			label += " [" + f.DefaultValue + "]"
		}
		for {
			t.Write(label + ": ")
			v, err := t.ReadLine()
			if err != nil {
				return nil, err
			}
			if v == "" {
				v = f.DefaultValue
			}
			if v == "" && f.IsMandatory {
				continue
			}
			values[f.Name] = v
			break
		}
	}
	return values, nil
}

// PromptForChoice lists the choices and reads a selection by number or label.
// An empty answer selects defaultChoice when it is in range.
func (t *TerminalUI) PromptForChoice(caption, message string, choices []ChoiceDescription, defaultChoice int) (int, error) {
	if len(choices) == 0 {
		return -1, pcerrors.NewArgumentError(module, "choices", 0, "at least one choice is required")
	}
	if defaultChoice >= len(choices) {
		return -1, pcerrors.NewArgumentError(module, "default_choice", defaultChoice, "out of range")
	}

	t.writeCaption(caption, message)
	for i, c := range choices {
		t.WriteLine(fmt.Sprintf("[%d] %s", i, choiceLabel(c.Label)))
	}

	ask := "Choice: "
	if defaultChoice >= 0 {
		ask = fmt.Sprintf("Choice [%d]: ", defaultChoice)
	}
	for {
		t.Write(ask)
		answer, err := t.ReadLine()
		if err != nil {
			return -1, err
		}
		answer = strings.TrimSpace(answer)
		if answer == "" && defaultChoice >= 0 {
			return defaultChoice, nil
		}
		if i, ok := matchChoice(choices, answer); ok {
			return i, nil
		}
	}
}

// choiceLabel strips the hotkey marker from a label such as "&Yes".
func choiceLabel(label string) string {
	return strings.Replace(label, "&", "", 1)
}

func matchChoice(choices []ChoiceDescription, answer string) (int, bool) {
	if i, err := strconv.Atoi(answer); err == nil && i >= 0 && i < len(choices) {
		return i, true
	}
	for i, c := range choices {
		if strings.EqualFold(choiceLabel(c.Label), answer) {
			return i, true
		}
		if k := strings.Index(c.Label, "&"); k >= 0 && k+1 < len(c.Label) &&
			strings.EqualFold(c.Label[k+1:k+2], answer) {
			return i, true
		}
	}
	return -1, false
}

// PromptForCredential reads a user name, unless given, and a password.
func (t *TerminalUI) PromptForCredential(caption, message, userName, targetName string) (*Credential, error) {
	t.writeCaption(caption, message)

	if userName == "" {
		t.Write("User: ")
		name, err := t.ReadLine()
		if err != nil {
			return nil, err
		}
		userName = name
	}

	ask := "Password for user " + userName
	if targetName != "" {
		ask += " on " + targetName
	}
	t.Write(ask + ": ")
	password, err := t.ReadLineAsSecure()
	if err != nil {
		return nil, err
	}
	return &Credential{UserName: userName, Password: password}, nil
}
