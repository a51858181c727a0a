package app

import "image"

// Listener receives controller notifications on the event goroutine
type Listener interface {
	StateChanged(s State)
	// SourceChanged is called with nil when no image is loaded
	SourceChanged(img image.Image)
	// ResultChanged is called with nil when the result is cleared
	ResultChanged(img image.Image)
	// ViewChanged reports a zoom or background change that needs a redraw
	ViewChanged()
	Progress(percent float64)
	Status(text string)
	Error(err error)
}

// NopListener ignores every notification. Embed it to implement only the
// callbacks you need.
type NopListener struct{}

func (NopListener) StateChanged(State)        {}
func (NopListener) SourceChanged(image.Image) {}
func (NopListener) ResultChanged(image.Image) {}
func (NopListener) ViewChanged()              {}
func (NopListener) Progress(float64)          {}
func (NopListener) Status(string)             {}
func (NopListener) Error(error)               {}
