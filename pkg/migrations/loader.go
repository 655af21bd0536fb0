// Package migrations applies the embedded SQL schema and seed data.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed sql/*.sql
var files embed.FS

// FS returns the embedded migration files rooted at the sql directory.
func FS() fs.FS {
	sub, err := fs.Sub(files, "sql")
	if err != nil {
		panic(err) // the directory is compiled in
	}
	return sub
}

// Direction is up or down.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Migration is one versioned SQL file, named NNNNNN_name.<direction>.sql.
type Migration struct {
	Version   string
	Name      string
	Direction Direction
	Path      string
}

// String returns the file name.
func (m Migration) String() string {
	return fmt.Sprintf("%s_%s.%s.sql", m.Version, m.Name, m.Direction)
}

// Load lists migrations for direction, sorted by version.
func Load(fsys fs.FS, direction Direction) ([]Migration, error) {
	suffix := "." + string(direction) + ".sql"

	var out []Migration
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, suffix) {
			return nil
		}
		base := strings.TrimSuffix(path.Base(p), suffix)
		version, name, ok := strings.Cut(base, "_")
		if !ok || !isVersion(version) {
			return nil
		}
		out = append(out, Migration{Version: version, Name: name, Direction: direction, Path: p})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %s", out[i].Version)
		}
	}
	return out, nil
}

func isVersion(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
