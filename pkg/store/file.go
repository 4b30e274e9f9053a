package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/project"
)

// FileStore keeps one document file per project in a directory. Files are
// written in the store's format; any supported format is read back.
type FileStore struct {
	dir    string
	format project.Format
}

// NewFileStore creates a file store in dir, creating the directory if it
// doesn't exist. An empty format defaults to YAML.
func NewFileStore(dir string, format project.Format) (*FileStore, error) {
	if format == "" {
		format = project.FormatYAML
	}
	if _, err := project.ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir, format: format}, nil
}

// DefaultDir returns the per-user project directory.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "framegraph", "projects"), nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Load(_ context.Context, name string) (*project.Document, error) {
	if err := fgerrors.ValidateProjectName(name); err != nil {
		return nil, err
	}
	path, ok := s.find(name)
	if !ok {
		return nil, NotFound(name)
	}
	doc, err := project.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc.Name = name
	return doc, nil
}

func (s *FileStore) Save(_ context.Context, doc *project.Document) error {
	if err := CheckDocument(doc); err != nil {
		return err
	}
	// Write to a hidden sibling first so readers never see a partial file.
	tmp := filepath.Join(s.dir, "."+doc.Name+".tmp."+string(s.format))
	if err := project.WriteFile(tmp, doc); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path(doc.Name, s.format)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save %s: %w", doc.Name, err)
	}
	// Drop copies of the project in other formats.
	for _, f := range project.Formats {
		if f != s.format {
			_ = os.Remove(s.path(doc.Name, f))
		}
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, name string) error {
	if err := fgerrors.ValidateProjectName(name); err != nil {
		return err
	}
	found := false
	for _, f := range project.Formats {
		err := os.Remove(s.path(name, f))
		if err == nil {
			found = true
			continue
		}
		if !os.IsNotExist(err) {
			return err
		}
	}
	if !found {
		return NotFound(name)
	}
	return nil
}

func (s *FileStore) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ext := filepath.Ext(e.Name())
		if _, err := project.ParseFormat(ext); err != nil {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Close does nothing for the file store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(name string, f project.Format) string {
	return filepath.Join(s.dir, name+"."+string(f))
}

// find returns the existing file for name, preferring the store's format.
func (s *FileStore) find(name string) (string, bool) {
	for _, f := range append([]project.Format{s.format}, project.Formats...) {
		p := s.path(name, f)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

var _ Store = (*FileStore)(nil)
