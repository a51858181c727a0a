package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoopRunsPostedEventsInOrder(t *testing.T) {
	l := NewLoop(4)
	var got []int
	for i := 0; i < 3; i++ {
		l.Post(func() { got = append(got, i) })
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.True(t, l.Next(ctx))
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestLoopStop(t *testing.T) {
	l := NewLoop(0)
	done := make(chan struct{})
	go func() {
		l.Run(context.Background())
		close(done)
	}()

	var n atomic.Int32
	l.Post(func() { n.Add(1) })
	l.Stop()
	l.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	l.Post(func() { n.Add(1) }) // dropped, must not block
	assert.Equal(t, int32(1), n.Load())
}

func TestLoopNextHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, NewLoop(1).Next(ctx))
}

func TestPosterFunc(t *testing.T) {
	called := false
	PosterFunc(func(fn func()) { fn() }).Post(func() { called = true })
	assert.True(t, called)
}
