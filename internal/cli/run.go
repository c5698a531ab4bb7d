package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sharpjs/PSConcurrent/internal/config"
	"github.com/sharpjs/PSConcurrent/internal/logging"
	commonctx "github.com/sharpjs/PSConcurrent/pkg/common/context"
)

// errNoCommands is returned by run when there is nothing to do.
var errNoCommands = errors.New("no commands to run: pass them as arguments, with --file, or as jobs in the config file")

type runOptions struct {
	configPath string
	file       string
}

func newRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [flags] [command...]",
		Short: "Run shell commands as one concurrent batch",
		Example: `  psconcurrent run -n 4 "make -C a" "make -C b" "make -C c"
  psconcurrent run --file jobs.txt --json
  psconcurrent run --schedule "*/5 * * * *" "./sync.sh"`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}

	fs := cmd.Flags()
	config.RegisterFlags(fs)
	fs.StringVarP(&opts.configPath, "config", "c", "", "config file (default: psconcurrent.toml or psconcurrent.yaml in the working directory)")
	fs.StringVarP(&opts.file, "file", "f", "", `read commands from a file, one per line ("-" for standard input)`)
	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(o.configPath, cmd.Flags())
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if cfg.File != "" {
		log.Debug("loaded config file", zap.String("path", cfg.File))
	}

	commands, err := o.commands(cmd.InOrStdin(), args, cfg.Jobs)
	if err != nil {
		return err
	}
	if len(commands) == 0 {
		return errNoCommands
	}

	h, err := newHost(cmd, cfg, log)
	if err != nil {
		return err
	}
	defer h.close()

	ctx, stop := commonctx.WithSignal(cmd.Context(), func(sig os.Signal) {
		log.Warn("interrupted, canceling", zap.Stringer("signal", sig))
	})
	defer stop()

	if cfg.Schedule != "" {
		return h.schedule(ctx, cfg.Schedule, commands)
	}
	return h.runBatch(ctx, commands)
}

// commands returns the positional commands followed by those read from
// --file. The config file's jobs are used only when neither is given.
func (o *runOptions) commands(stdin io.Reader, args, jobs []string) ([]string, error) {
	commands := append([]string(nil), args...)

	if o.file != "" {
		r := stdin
		if o.file != "-" {
			f, err := os.Open(o.file)
			if err != nil {
				return nil, fmt.Errorf("reading commands: %w", err)
			}
			defer f.Close()
			r = f
		}
		lines, err := readCommands(r)
		if err != nil {
			return nil, fmt.Errorf("reading commands from %s: %w", o.file, err)
		}
		commands = append(commands, lines...)
	}

	if len(commands) == 0 {
		commands = append(commands, jobs...)
	}
	return commands, nil
}

// readCommands returns the non-empty lines of r. Lines starting with # are
// comments.
func readCommands(r io.Reader) ([]string, error) {
	var commands []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commands = append(commands, line)
	}
	return commands, scanner.Err()
}
