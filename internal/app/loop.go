package app

import (
	"context"
	"sync"
)

// Poster delivers a function to the goroutine that owns the controller.
// Workers never touch controller state directly; they post a completion.
type Poster interface {
	Post(fn func())
}

// PosterFunc adapts a function such as fyne.Do to Poster
type PosterFunc func(fn func())

func (f PosterFunc) Post(fn func()) { f(fn) }

// Loop is a channel backed event consumer for front-ends that have no UI
// toolkit main loop of their own
type Loop struct {
	events chan func()
	done   chan struct{}
	once   sync.Once
}

// NewLoop creates a Loop whose queue holds up to size pending events
func NewLoop(size int) *Loop {
	return &Loop{
		events: make(chan func(), size),
		done:   make(chan struct{}),
	}
}

// Post queues fn. It blocks while the queue is full and drops fn once the
// loop is stopped.
func (l *Loop) Post(fn func()) {
	select {
	case l.events <- fn:
	case <-l.done:
	}
}

// Next runs exactly one queued event, waiting for it if necessary. It
// returns false when ctx ends or the loop is stopped first.
func (l *Loop) Next(ctx context.Context) bool {
	select {
	case fn := <-l.events:
		fn()
		return true
	case <-ctx.Done():
		return false
	case <-l.done:
		return false
	}
}

// Run consumes events until ctx ends or Stop is called
func (l *Loop) Run(ctx context.Context) {
	for l.Next(ctx) {
	}
}

// Stop ends Run and makes further posts no-ops
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}
