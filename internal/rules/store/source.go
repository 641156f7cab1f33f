// Package store provides rule document sources for the rules engine.
package store

import (
	"context"
	"fmt"
	"os"
)

// FileSource reads the rule document from disk on every load, so a reload
// picks up edits to the file.
type FileSource struct {
	Path string
}

// NewFileSource returns a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load reads the whole file.
func (s *FileSource) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", s.Path, err)
	}
	return data, nil
}

// StaticSource serves a fixed document, typically the embedded default.
type StaticSource []byte

// Load returns a copy of the document.
func (s StaticSource) Load(_ context.Context) ([]byte, error) {
	return append([]byte(nil), s...), nil
}
