// Package models defines the domain types for Jera.
package models

import (
	"path"
	"strings"
	"time"
)

// Note represents a vault note surfaced by a Note Store query.
// Content is empty until fetched; Size reflects the store-reported size
// until then and the content length afterwards.
type Note struct {
	Path     string    `json:"path"`
	Filename string    `json:"filename"`
	Content  string    `json:"-"`
	Tags     []string  `json:"tags"`
	Size     int       `json:"size"`
	ModTime  time.Time `json:"mtime,omitempty"`
}

// NewNote builds a Note from query-result fields. Tags are never nil.
func NewNote(p, filename string, size int, tags []string, modTime time.Time) Note {
	if filename == "" {
		filename = path.Base(p)
	}
	return Note{
		Path:     p,
		Filename: filename,
		Tags:     nonNilSlice(tags),
		Size:     size,
		ModTime:  modTime,
	}
}

// Title returns the display name: the filename without its extension.
func (n *Note) Title() string {
	return strings.TrimSuffix(n.Filename, path.Ext(n.Filename))
}

// SetContent stores the fetched content and re-derives Size from it.
// The note is treated as immutable from this point on.
func (n *Note) SetContent(content string) {
	n.Content = content
	n.Size = len(content)
}

// Loaded reports whether content has been fetched.
func (n *Note) Loaded() bool {
	return n.Content != ""
}

// HasTag reports whether the note carries the given tag (case-sensitive).
func (n *Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
