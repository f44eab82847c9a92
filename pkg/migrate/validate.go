package migrate

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
)

var fileNameRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// Validate checks every .sql file in src: the name is
// YYYYMMDDHHMMSS_snake_name.sql, versions are unique, and the body carries
// both goose Up and Down markers. An empty source is valid.
func Validate(src Source) error {
	if src.FS == nil {
		return fmt.Errorf("migration source is required")
	}
	entries, err := fs.ReadDir(src.FS, src.Dir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	versions := make(map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		match := fileNameRe.FindStringSubmatch(name)
		if match == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[match[1]]; dup {
			return fmt.Errorf("duplicate migration version %s in %q and %q", match[1], prev, name)
		}
		versions[match[1]] = name

		body, err := fs.ReadFile(src.FS, path.Join(src.Dir, name))
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				return fmt.Errorf("migration %q missing %q", name, marker)
			}
		}
	}
	return nil
}
