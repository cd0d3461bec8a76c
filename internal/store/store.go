// Package store maps logical media locators ("/storage/...") onto the
// local data directory and owns the artifact layout for renders and
// exports. Callers treat locators as opaque strings; only this package
// knows they are paths.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Store struct {
	root string
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) Root() string {
	return s.root
}

// Resolve turns a logical locator into an absolute path inside the
// storage root. Absolute filesystem paths pass through untouched so
// development setups can point straight at local files.
func (s *Store) Resolve(locator string) string {
	switch {
	case strings.HasPrefix(locator, "/storage/"):
		return filepath.Join(s.root, strings.TrimPrefix(locator, "/storage/"))
	case strings.HasPrefix(locator, "storage/"):
		return filepath.Join(s.root, strings.TrimPrefix(locator, "storage/"))
	default:
		return locator
	}
}

// Locator returns the logical form of a path under the storage root.
func (s *Store) Locator(relParts ...string) string {
	return "storage/" + strings.Join(relParts, "/")
}

// RenderOutput allocates an output file location for a project render.
// The directory is created eagerly; the file is written by ffmpeg.
func (s *Store) RenderOutput(projectID, filename string) (locator, absPath string, err error) {
	dir := filepath.Join(s.root, "renders", projectID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("create renders dir: %w", err)
	}
	return s.Locator("renders", projectID, filename), filepath.Join(dir, filename), nil
}

// ExportOutput allocates an output file location for an interchange
// file export.
func (s *Store) ExportOutput(projectID, filename string) (locator, absPath string, err error) {
	dir := filepath.Join(s.root, "exports", projectID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("create exports dir: %w", err)
	}
	return s.Locator("exports", projectID, filename), filepath.Join(dir, filename), nil
}
