package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeNameRe = regexp.MustCompile(`[^a-z0-9_]+`)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// Create writes an empty goose migration <dir>/<YYYYMMDDHHMMSS>_<name>.sql and
// returns its path. It refuses to overwrite an existing file.
func Create(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	safe, err := fileSafeName(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	full := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", now.UTC().Format("20060102150405"), safe))
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", full, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, migrationTemplate, safe); err != nil {
		return "", fmt.Errorf("write migration %q: %w", full, err)
	}
	return full, nil
}

func fileSafeName(name string) (string, error) {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = strings.Trim(unsafeNameRe.ReplaceAllString(safe, "_"), "_")
	if safe == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	return safe, nil
}
