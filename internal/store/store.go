package store

import (
	"errors"
	"os"
	"path/filepath"
)

const (
	localDirName   = ".pagecraft"
	sqliteFileName = "pagecraft.sqlite"
)

// ErrNoDocument is returned by Load when the directory holds no saved document yet.
var ErrNoDocument = errors.New("no document in store (run `pagecraft init`)")

// Store persists one document and its event log under Dir.
type Store struct {
	Dir string
}

// DiscoverDir walks up from start looking for a .pagecraft directory.
func DiscoverDir(start string) (string, bool) {
	dir := start
	for {
		candidate := filepath.Join(dir, localDirName)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// DefaultDir is the discovered .pagecraft directory, or ./.pagecraft when none exists.
func DefaultDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if found, ok := DiscoverDir(cwd); ok {
		return found, nil
	}
	return filepath.Join(cwd, localDirName), nil
}

// ProjectDir is the store directory of a named project under the config dir.
func ProjectDir(name string) (string, error) {
	name, err := NormalizeProjectName(name)
	if err != nil {
		return "", err
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "projects", name), nil
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) sqlitePath() string {
	return filepath.Join(s.Dir, sqliteFileName)
}

// Exists reports whether a document has been saved under Dir.
func (s Store) Exists() bool {
	_, err := os.Stat(s.sqlitePath())
	return err == nil
}
