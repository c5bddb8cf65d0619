package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/termfx/refactory/config"
	"github.com/termfx/refactory/core"
	"github.com/termfx/refactory/db"
)

const (
	exitOK       = 0
	exitRejected = 1
	exitFatal    = 2
)

var version = "dev"

// app carries global flags and the streams commands write to.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	logLevel string
	envFiles []string
	journal  string
	noColor  bool

	env      *config.Env
	exitCode int
}

func execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{in: in, out: out, errOut: errOut}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		if errors.Is(err, context.Canceled) {
			return exitRejected
		}
		return exitFatal
	}
	return a.exitCode
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "refactory",
		Short:         "Structural query and batch-edit engine for source trees",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (default from REFACTORY_LOG_LEVEL or info)")
	flags.StringSliceVar(&a.envFiles, "env-file", nil, "Dotenv files to load (default .env)")
	flags.StringVar(&a.journal, "journal", "", "Journal location: a directory, a .db file or a libsql:// URL (default from REFACTORY_JOURNAL)")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newRunCommand(a),
		newQueryCommand(a),
		newLangsCommand(a),
		newHistoryCommand(a),
		newRevertCommand(a),
	)
	return cmd
}

// setup loads the environment and puts a logger into the command context.
func (a *app) setup(cmd *cobra.Command) error {
	env, err := config.LoadEnv(a.envFiles...)
	if err != nil {
		return err
	}
	a.env = env

	level := a.logLevel
	if level == "" {
		level = env.LogLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return errors.Errorf("invalid log level %q", level)
	}
	if a.journal == "" {
		a.journal = env.Journal
	}
	if a.noColor {
		color.NoColor = true
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: a.errOut, NoColor: a.noColor || color.NoColor}).
		Level(parsed).
		With().Timestamp().Logger()
	cmd.SetContext(logger.WithContext(cmd.Context()))
	return nil
}

// openJournal returns nil when no journal is configured. The returned close
// function is always safe to call.
func (a *app) openJournal(writer *core.AtomicWriter) (*core.Journal, func(), error) {
	noop := func() {}
	if a.journal == "" {
		return nil, noop, nil
	}

	if !isDatabase(a.journal) {
		store, err := core.NewDirStore(a.journal)
		if err != nil {
			return nil, noop, err
		}
		return core.NewJournal(store, writer), noop, nil
	}

	conn, err := db.Connect(a.journal, a.logLevel == "trace")
	if err != nil {
		return nil, noop, err
	}
	closeFn := func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return core.NewJournal(db.NewJournalStore(conn), writer), closeFn, nil
}

func (a *app) requireJournal(writer *core.AtomicWriter) (*core.Journal, func(), error) {
	journal, closeFn, err := a.openJournal(writer)
	if err != nil {
		return nil, closeFn, err
	}
	if journal == nil {
		return nil, closeFn, errors.New("no journal configured; pass --journal or set REFACTORY_JOURNAL")
	}
	return journal, closeFn, nil
}

func isDatabase(location string) bool {
	if strings.Contains(location, "://") {
		return true
	}
	switch strings.ToLower(filepath.Ext(location)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}
