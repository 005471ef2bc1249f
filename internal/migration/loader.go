package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// ConfigFileName is the reserved configuration file that may live next to
	// the migrations; the reader never treats it as a migration.
	ConfigFileName = "mite.yml"

	// BaseScriptName is the setup script run by a from-scratch rebuild. Like every
	// other underscore-prefixed file it is not a migration.
	BaseScriptName = "_base.sql"

	scriptExt = ".sql"
)

// markerPattern captures the up body lazily and the down body to the end of the file.
var markerPattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once, used by ParseScript
	`(?is)/\*\s*up\s*\*/(.*?)/\*\s*down\s*\*/(.*)`,
)

// LoadFromDir reads every migration file in dir. The result is unsorted.
func LoadFromDir(dir string) ([]Migration, error) {
	return load(os.DirFS(dir), dir)
}

// LoadFromFS reads every migration file at the root of fsys, which may be an
// embed.FS narrowed with fs.Sub. The result is unsorted.
func LoadFromFS(fsys fs.FS) ([]Migration, error) {
	return load(fsys, "")
}

// ParseScript splits file content into up and down bodies. Content without
// markers is entirely the up script.
func ParseScript(content string) (string, string) {
	matches := markerPattern.FindStringSubmatch(content)
	if matches == nil {
		return strings.TrimSpace(content), ""
	}

	return strings.TrimSpace(matches[1]), strings.TrimSpace(matches[2])
}

// VersionOf derives the version from a migration file name.
func VersionOf(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// ReadBaseScript returns the content of the base script and whether it exists.
func ReadBaseScript(fsys fs.FS) (string, bool, error) {
	data, err := fs.ReadFile(fsys, BaseScriptName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("reading %s: %w", BaseScriptName, err)
	}

	return string(data), true, nil
}

func load(fsys fs.FS, root string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory %s: %w", displayRoot(root), err)
	}

	names := scanEntries(entries)
	seen := make(map[string]string, len(names))
	migrations := make([]Migration, 0, len(names))

	for _, name := range names {
		version := VersionOf(name)
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("%w: %s and %s both resolve to %q", ErrDuplicateVersion, prev, name, version)
		}

		seen[version] = name

		m, err := readMigration(fsys, root, name)
		if err != nil {
			return nil, err
		}

		migrations = append(migrations, m)
	}

	return migrations, nil
}

// scanEntries returns the names of the entries that are migration files.
func scanEntries(entries []fs.DirEntry) []string {
	var names []string

	for _, entry := range entries {
		name := entry.Name()

		switch {
		case entry.IsDir():
			continue
		case strings.HasPrefix(name, "_"), name == ConfigFileName:
			continue
		case !strings.EqualFold(path.Ext(name), scriptExt):
			continue
		}

		names = append(names, name)
	}

	return names
}

func readMigration(fsys fs.FS, root, name string) (Migration, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Migration{}, fmt.Errorf("reading migration file %s: %w", name, err)
	}

	up, down := ParseScript(string(data))

	m := New(VersionOf(name), up, down)
	m.FilePath = name

	if root != "" {
		m.FilePath = filepath.Join(root, name)
	}

	return m, nil
}

func displayRoot(root string) string {
	if root == "" {
		return "(embedded)"
	}

	return root
}
