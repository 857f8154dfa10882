package network

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("network: peer closed")

// inbox queues received frames per route until Recv takes them.
type inbox struct {
	mu      sync.Mutex
	closed  bool
	frames  map[route][]Frame
	lastSeq map[route]uint64
	waiters map[route]chan struct{}
}

func newInbox() *inbox {
	return &inbox{
		frames:  make(map[route][]Frame),
		lastSeq: make(map[route]uint64),
		waiters: make(map[route]chan struct{}),
	}
}

// put queues f. It returns false if f is a duplicate of a frame already
// queued or taken.
func (b *inbox) put(f Frame) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := f.route()
	if f.Seq <= b.lastSeq[r] {
		return false
	}
	b.lastSeq[r] = f.Seq
	b.frames[r] = append(b.frames[r], f)
	if ch, ok := b.waiters[r]; ok {
		close(ch)
		delete(b.waiters, r)
	}
	return true
}

// take blocks until a frame is queued on r.
func (b *inbox) take(ctx context.Context, r route) (Frame, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return Frame{}, ErrClosed
		}
		if q := b.frames[r]; len(q) > 0 {
			f := q[0]
			q[0] = Frame{}
			b.frames[r] = q[1:]
			b.mu.Unlock()
			return f, nil
		}
		ch, ok := b.waiters[r]
		if !ok {
			ch = make(chan struct{})
			b.waiters[r] = ch
		}
		b.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
}

func (b *inbox) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for r, ch := range b.waiters {
		close(ch)
		delete(b.waiters, r)
	}
}
