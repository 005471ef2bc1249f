package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/mite/internal/config"
	"github.com/aqasim81/mite/internal/dialect"
	"github.com/aqasim81/mite/internal/logging"
	"github.com/aqasim81/mite/internal/migration"
	"github.com/aqasim81/mite/internal/migrator"
	"github.com/aqasim81/mite/internal/repository"
)

// session bundles the repository and migrator built from the configuration.
type session struct {
	cfg      *config.Config
	source   fs.FS
	repo     repository.Repository
	migrator *migrator.Migrator
	logger   *slog.Logger
	out      io.Writer
}

// openSession validates cfg, opens the configured repository and reads the
// current migration state.
func openSession(cmd *cobra.Command, cfg *config.Config) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	var splitter dialect.Splitter
	if cfg.Splitter != "" {
		if splitter, err = dialect.Lookup(cfg.Splitter); err != nil {
			return nil, err
		}
	}

	source := os.DirFS(cfg.MigrationsDir)

	baseScript, _, err := migration.ReadBaseScript(source)
	if err != nil {
		return nil, err
	}

	repo, err := repository.Default().Open(cfg.Repository, repository.Options{
		URL:              cfg.DatabaseURL,
		Source:           source,
		Table:            cfg.Table,
		Permissive:       cfg.Permissive,
		Splitter:         splitter,
		LockTimeout:      cfg.LockTimeout,
		StatementTimeout: cfg.StatementTimeout,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()

	logger.Debug("opening repository",
		"repository", cfg.Repository,
		"database", config.RedactURL(cfg.DatabaseURL),
		"migrations_dir", cfg.MigrationsDir)

	m, err := migrator.New(commandContext(cmd), repo,
		migrator.WithLogger(logger),
		migrator.WithVerifyDatabase(cfg.VerifyDatabase),
		migrator.WithBaseScript(baseScript),
		migrator.WithProgressCallback(progressPrinter(out)),
	)
	if err != nil {
		_ = repo.Close()

		return nil, err
	}

	return &session{cfg: cfg, source: source, repo: repo, migrator: m, logger: logger, out: out}, nil
}

// Close releases the repository.
func (s *session) Close() {
	if err := s.repo.Close(); err != nil {
		s.logger.Debug("closing repository", "error", err)
	}
}

// report prints the outcome message of a migrator operation.
func (s *session) report(res migrator.Result) {
	fmt.Fprintln(s.out, res.Message)
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	lvl, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	w := cmd.ErrOrStderr()

	return logging.New(w, lvl, logging.IsTerminal(w)), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

// progressPrinter writes one line per executed migration script.
func progressPrinter(out io.Writer) func(migrator.ProgressEvent) {
	return func(event migrator.ProgressEvent) {
		switch event.Status {
		case migrator.StatusStarting:
			fmt.Fprintf(out, "  %s %s ... ", verb(event.Direction), event.Migration.Version)
		case migrator.StatusCompleted:
			fmt.Fprintf(out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))
		case migrator.StatusFailed:
			fmt.Fprintf(out, "FAILED\n")
			fmt.Fprintf(out, "    Error: %v\n", event.Error)
		}
	}
}

func verb(d migration.Direction) string {
	if d == migration.Down {
		return "Reverting"
	}

	return "Applying"
}
