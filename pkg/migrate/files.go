package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	versionLayout   = "20060102150405"
	annotationUp    = "-- +goose Up"
	annotationDown  = "-- +goose Down"
	annotationBegin = "-- +goose StatementBegin"
	annotationEnd   = "-- +goose StatementEnd"
)

var (
	fileNameRe    = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	unsafeChunkRe = regexp.MustCompile(`[^a-z0-9_]+`)
)

// File is one goose SQL migration on disk.
type File struct {
	Version string
	Name    string
	Path    string
}

// ListFiles returns the SQL migrations in dir ordered by version. Non-SQL
// entries are ignored.
func ListFiles(dir string) ([]File, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m := fileNameRe.FindStringSubmatch(entry.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", entry.Name())
		}
		files = append(files, File{Version: m[1], Name: m[2], Path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// ValidateDir checks filenames, version uniqueness and goose annotations of
// every migration in dir. Up must precede Down and statement blocks must be
// balanced so the same files apply on postgres and sqlite.
func ValidateDir(dir string) error {
	files, err := ListFiles(dir)
	if err != nil {
		return err
	}
	for i, file := range files {
		if i > 0 && files[i-1].Version == file.Version {
			return fmt.Errorf("duplicate migration version %s in %q and %q", file.Version, files[i-1].Path, file.Path)
		}
		if _, err := time.Parse(versionLayout, file.Version); err != nil {
			return fmt.Errorf("migration %q has an invalid timestamp version", file.Path)
		}
		data, err := os.ReadFile(file.Path)
		if err != nil {
			return fmt.Errorf("read file %q: %w", file.Path, err)
		}
		if err := checkAnnotations(string(data)); err != nil {
			return fmt.Errorf("migration %q: %w", filepath.Base(file.Path), err)
		}
	}
	return nil
}

func checkAnnotations(body string) error {
	up := strings.Index(body, annotationUp)
	down := strings.Index(body, annotationDown)
	switch {
	case up < 0:
		return fmt.Errorf("missing %q", annotationUp)
	case down < 0:
		return fmt.Errorf("missing %q", annotationDown)
	case down < up:
		return fmt.Errorf("%q must come before %q", annotationUp, annotationDown)
	}

	depth := 0
	for _, line := range strings.Split(body, "\n") {
		switch strings.TrimSpace(line) {
		case annotationBegin:
			depth++
			if depth > 1 {
				return fmt.Errorf("nested %q", annotationBegin)
			}
		case annotationEnd:
			depth--
			if depth < 0 {
				return fmt.Errorf("%q without a matching begin", annotationEnd)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("unterminated %q", annotationBegin)
	}
	return nil
}

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<name>.sql. A name of the
// form create_<table> gets a table skeleton with the audit columns every
// ledger table carries; other names get empty statement blocks.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(unsafeChunkRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", time.Now().UTC().Format(versionLayout), slug))
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("migration already exists: %s", path)
	}
	if err := os.WriteFile(path, []byte(migrationTemplate(slug)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}

func migrationTemplate(slug string) string {
	up, down := "-- "+slug, "-- rollback "+slug
	if table, ok := strings.CutPrefix(slug, "create_"); ok && table != "" {
		up = "CREATE TABLE IF NOT EXISTS " + table + " (\n" +
			"    id         UUID PRIMARY KEY,\n" +
			"    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
			"    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
			"    deleted_at TIMESTAMPTZ\n" +
			");"
		down = "DROP TABLE IF EXISTS " + table + ";"
	}
	return strings.Join([]string{
		annotationUp, annotationBegin, up, annotationEnd, "",
		annotationDown, annotationBegin, down, annotationEnd, "",
	}, "\n")
}
