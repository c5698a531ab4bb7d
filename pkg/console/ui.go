package console

// UI is the host's line-oriented user interface.
type UI interface {
	Write(s string)
	WriteLine(s string)
	WriteColored(fg, bg Color, s string)
	WriteDebugLine(s string)
	WriteVerboseLine(s string)
	WriteWarningLine(s string)
	WriteErrorLine(s string)

	// WriteInformation writes a structured informational record.
	WriteInformation(record any)

	// WriteProgress writes a progress record for the given source.
	WriteProgress(sourceID int64, record ProgressRecord)

	ReadLine() (string, error)
	ReadLineAsSecure() (string, error)

	// Prompt asks for a value for each field and returns them by field name.
	Prompt(caption, message string, fields []FieldDescription) (map[string]string, error)

	// PromptForChoice returns the index of the selected choice.
	PromptForChoice(caption, message string, choices []ChoiceDescription, defaultChoice int) (int, error)

	PromptForCredential(caption, message, userName, targetName string) (*Credential, error)
}

// Color is a console color. The values follow the classic 16-color console
// palette; DefaultColor leaves the color unchanged.
type Color int

// Console colors.
const (
	DefaultColor Color = iota - 1
	Black
	DarkBlue
	DarkGreen
	DarkCyan
	DarkRed
	DarkMagenta
	DarkYellow
	Gray
	DarkGray
	Blue
	Green
	Cyan
	Red
	Magenta
	Yellow
	White
)

var colorNames = [...]string{
	"Black", "DarkBlue", "DarkGreen", "DarkCyan", "DarkRed", "DarkMagenta", "DarkYellow", "Gray",
	"DarkGray", "Blue", "Green", "Cyan", "Red", "Magenta", "Yellow", "White",
}

func (c Color) valid() bool {
	return c >= Black && c <= White
}

// String implements fmt.Stringer.
func (c Color) String() string {
	if !c.valid() {
		return "Default"
	}
	return colorNames[c]
}

// ProgressRecord describes the progress of a long-running activity.
type ProgressRecord struct {
	ActivityID        int
	ParentActivityID  int
	Activity          string
	StatusDescription string
	CurrentOperation  string
	PercentComplete   int // -1 when unknown
	SecondsRemaining  int // -1 when unknown
	Completed         bool
}

// FieldDescription describes one field requested by Prompt.
type FieldDescription struct {
	Name         string
	Label        string
	HelpMessage  string
	DefaultValue string
	IsMandatory  bool
}

// ChoiceDescription describes one option offered by PromptForChoice.
type ChoiceDescription struct {
	Label       string
	HelpMessage string
}

// Credential is a user name and password pair.
type Credential struct {
	UserName string
	Password string
}
