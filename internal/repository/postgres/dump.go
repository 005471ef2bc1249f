package postgres

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// GenerateSQLScript dumps the active database with pg_dump. The ledger table
// is excluded; data is included only when includeData is set.
func (r *Repository) GenerateSQLScript(ctx context.Context, includeData bool) (string, error) {
	args := r.dumpArgs(includeData)

	cmd := exec.CommandContext(ctx, r.pgDump, args...) //nolint:gosec // arguments are built from configuration
	cmd.Env = append(os.Environ(), r.dumpEnv()...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %w: %s", ErrDumpFailed, err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

func (r *Repository) dumpArgs(includeData bool) []string {
	args := []string{"--no-owner", "--no-privileges", "--exclude-table=" + r.ledger.regclass()}

	if !includeData {
		args = append(args, "--schema-only")
	}

	return args
}

// dumpEnv passes connection settings through libpq variables so the password
// never appears on the command line.
func (r *Repository) dumpEnv() []string {
	cc := r.base.ConnConfig

	env := []string{
		"PGHOST=" + cc.Host,
		"PGPORT=" + strconv.Itoa(int(cc.Port)),
		"PGUSER=" + cc.User,
		"PGDATABASE=" + r.database,
	}

	if cc.Password != "" {
		env = append(env, "PGPASSWORD="+cc.Password)
	}

	return env
}
