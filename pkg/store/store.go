// Package store holds the image being edited, the most recent background
// removal result and a linear undo history.
//
// A Store is not safe for concurrent use. It is owned by a single goroutine
// (the controller's event consumer); workers only ever receive clones of the
// source and hand results back through SetResult together with the generation
// they were computed from.
package store

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/menta2k/background-remover/pkg/types"
)

// Transform produces a new source image from the current one. It must not
// retain or modify src.
type Transform func(src *image.NRGBA) (*image.NRGBA, error)

// Option configures a Store
type Option func(*Store)

// WithMaxDepth caps the undo history at n snapshots, dropping the oldest
// first. n <= 0 means unbounded.
func WithMaxDepth(n int) Option {
	return func(s *Store) {
		s.maxDepth = n
	}
}

// Store is the image store with undo
type Store struct {
	source     *image.NRGBA
	result     *image.NRGBA
	undo       []*image.NRGBA
	generation uint64
	maxDepth   int
}

// New creates an empty Store. The undo history is unbounded unless
// WithMaxDepth is given.
func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the source image, clears the result and starts a new edit
// history. It returns the new generation.
func (s *Store) Load(img image.Image) uint64 {
	s.source = imaging.Clone(img)
	s.result = nil
	s.undo = nil
	s.generation++
	return s.generation
}

// ApplyEdit pushes the current source onto the undo stack and replaces it
// with t(source). Any existing result is discarded. If t fails, the store is
// left untouched.
func (s *Store) ApplyEdit(t Transform) error {
	if s.source == nil {
		return types.ErrNoImage
	}

	next, err := t(imaging.Clone(s.source))
	if err != nil {
		return errors.Wrap(err, "apply edit")
	}
	if next == nil {
		return errors.New("apply edit: transform returned no image")
	}

	s.undo = append(s.undo, s.source)
	if s.maxDepth > 0 && len(s.undo) > s.maxDepth {
		s.undo[0] = nil
		s.undo = s.undo[1:]
	}
	s.source = next
	s.result = nil
	s.generation++
	return nil
}

// Undo restores the previous source. It returns types.ErrNothingToUndo,
// without changing anything, when the history is empty.
func (s *Store) Undo() error {
	n := len(s.undo)
	if n == 0 {
		return types.ErrNothingToUndo
	}

	s.source = s.undo[n-1]
	s.undo[n-1] = nil
	s.undo = s.undo[:n-1]
	s.result = nil
	s.generation++
	return nil
}

// SetResult stores img as the result of the source at generation gen. A
// result computed from a superseded source is discarded and false is returned.
func (s *Store) SetResult(gen uint64, img image.Image) bool {
	if s.source == nil || gen != s.generation || img == nil {
		return false
	}
	s.result = imaging.Clone(img)
	return true
}

// Snapshot returns a clone of the source along with its generation, for
// handing to a worker.
func (s *Store) Snapshot() (*image.NRGBA, uint64, error) {
	if s.source == nil {
		return nil, s.generation, types.ErrNoImage
	}
	return imaging.Clone(s.source), s.generation, nil
}

// Source returns the current source image or nil. Callers must not modify it.
func (s *Store) Source() image.Image {
	if s.source == nil {
		return nil
	}
	return s.source
}

// Result returns the current result image or nil. Callers must not modify it.
func (s *Store) Result() image.Image {
	if s.result == nil {
		return nil
	}
	return s.result
}

func (s *Store) HasSource() bool { return s.source != nil }

func (s *Store) HasResult() bool { return s.result != nil }

// Generation identifies the current source version
func (s *Store) Generation() uint64 { return s.generation }

// UndoDepth returns the number of snapshots on the undo stack
func (s *Store) UndoDepth() int { return len(s.undo) }
