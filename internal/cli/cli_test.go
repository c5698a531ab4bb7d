package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(t *testing.T, ctx context.Context, stdin string, args ...string) result {
	t.Helper()
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))

	err := root.ExecuteContext(ctx)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestVersion(t *testing.T) {
	r := execute(t, context.Background(), "", "version")
	require.NoError(t, r.err)
	assert.Equal(t, "psconcurrent dev\n", r.stdout)
}

func TestVersionRejectsArgs(t *testing.T) {
	r := execute(t, context.Background(), "", "version", "extra")
	assert.Error(t, r.err)
}

func TestRunWithoutCommands(t *testing.T) {
	r := execute(t, context.Background(), "", "run")
	assert.ErrorIs(t, r.err, errNoCommands)
}

func TestRunInvalidConfiguration(t *testing.T) {
	r := execute(t, context.Background(), "", "run", "-n", "0", "true")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "max_concurrency")
}

func TestReadCommands(t *testing.T) {
	input := "echo a\n\n  # comment\n  echo b  \r\n#echo c\n"
	commands, err := readCommands(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"echo a", "echo b"}, commands)
}

func TestCommandSources(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "jobs.txt")
	require.NoError(t, os.WriteFile(file, []byte("from file\n"), 0o600))

	tests := []struct {
		name  string
		opts  runOptions
		stdin string
		args  []string
		jobs  []string
		want  []string
	}{
		{"args", runOptions{}, "", []string{"a", "b"}, []string{"job"}, []string{"a", "b"}},
		{"args then file", runOptions{file: file}, "", []string{"a"}, nil, []string{"a", "from file"}},
		{"stdin", runOptions{file: "-"}, "x\ny\n", nil, nil, []string{"x", "y"}},
		{"config jobs", runOptions{}, "", nil, []string{"job 1", "job 2"}, []string{"job 1", "job 2"}},
		{"nothing", runOptions{}, "", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.commands(strings.NewReader(tt.stdin), tt.args, tt.jobs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandFileMissing(t *testing.T) {
	opts := runOptions{file: filepath.Join(t.TempDir(), "missing.txt")}
	_, err := opts.commands(strings.NewReader(""), nil, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCronLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := cronLogger{zap.New(core).Sugar()}

	l.Info("schedule", "entry", 1)
	l.Error(assert.AnError, "panic", "entry", 2)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "panic", entries[1].Message)
	assert.Equal(t, assert.AnError.Error(), entries[1].ContextMap()["error"])
}
