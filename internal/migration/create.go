package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// VersionLayout formats the default version of a newly created migration.
const VersionLayout = "2006-01-02T15-04-05Z"

// NextVersion returns the default version for a migration created at now.
func NextVersion(now time.Time) string {
	return now.UTC().Format(VersionLayout)
}

// Render produces the content of a migration file with both markers.
func Render(upSQL, downSQL string) string {
	return "/* up */\n" + upSQL + "\n/* down */\n" + downSQL + "\n"
}

// ValidateNewVersion checks that version can be added after existing.
func ValidateNewVersion(existing []Migration, version string) error {
	if version == "" || strings.HasPrefix(version, "_") || strings.ContainsAny(version, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}

	for _, m := range existing {
		if m.Version >= version {
			return fmt.Errorf("%w: %q is not after %q", ErrVersionNotGreatest, version, m.Version)
		}
	}

	return nil
}

// Create writes a new migration file into dir and returns its path.
// name may carry the .sql extension; an existing file is never overwritten.
func Create(dir, name, content string) (string, error) {
	version := VersionOf(name)

	existing, err := LoadFromDir(dir)
	if err != nil {
		return "", err
	}

	if err := ValidateNewVersion(existing, version); err != nil {
		return "", err
	}

	target := filepath.Join(dir, version+scriptExt)

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating migration file %s: %w", target, err)
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()

		return "", fmt.Errorf("writing migration file %s: %w", target, err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing migration file %s: %w", target, err)
	}

	return target, nil
}
