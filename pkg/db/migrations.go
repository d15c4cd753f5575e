package db

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

const migrationsLogPrefix = "db:migrations"

// downMarker separates the forward and rollback sections of a migration file.
const downMarker = "-- +migrate Down"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migration is one SQL migration file.
type Migration struct {
	Name string
	Up   string
	Down string
}

// ParseMigration splits content into its up and down sections.
func ParseMigration(name, content string) Migration {
	up, down, _ := strings.Cut(content, downMarker)
	return Migration{
		Name: name,
		Up:   strings.TrimSpace(up),
		Down: strings.TrimSpace(down),
	}
}

// LoadMigrations reads all .sql files from dir, sorted by name. An empty dir, or a dir that
// does not exist, falls back to the migrations compiled into the binary.
func LoadMigrations(dir string) ([]Migration, error) {
	if dir == "" {
		return loadFS(embeddedMigrations, "migrations", "embedded")
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		slog.Info(fmt.Sprintf("%s - %s not found, using embedded migrations", migrationsLogPrefix, dir))
		return loadFS(embeddedMigrations, "migrations", "embedded")
	}
	return loadFS(os.DirFS(dir), ".", dir)
}

func loadFS(fsys fs.FS, root, label string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migration dir %s: %w", migrationsLogPrefix, label, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, name, err)
		}
		out = append(out, ParseMigration(name, string(data)))
	}
	slog.Info(fmt.Sprintf("%s - Loaded %d migration files from %s", migrationsLogPrefix, len(out), label))
	return out, nil
}
