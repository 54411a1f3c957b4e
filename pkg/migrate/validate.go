package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks migration filenames and goose section markers
// without touching the database. It runs in CI ahead of any deploy so
// a malformed file fails the build instead of the rollout.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{} // version -> filename
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, err := checkMigrationFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if prev, ok := seen[version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name
	}
	return nil
}

func checkMigrationFile(path string) (version string, err error) {
	name := filepath.Base(path)
	m := sqlFileRe.FindStringSubmatch(name)
	if m == nil {
		return "", fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file %q: %w", path, err)
	}
	for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
		if !strings.Contains(string(b), marker) {
			return "", fmt.Errorf("migration %q missing %q", name, marker)
		}
	}
	return m[1], nil
}
