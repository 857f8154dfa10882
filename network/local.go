package network

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/luca-patrignani/treecast/collective"
)

const localLinkCapacity = 16

type localMessage struct {
	kind    collective.Kind
	count   int
	payload []byte
}

type localLink struct {
	src, dst int
	tag      collective.Tag
}

// LocalNetwork connects LocalTransports living in the same process.
type LocalNetwork struct {
	size  int
	mu    sync.Mutex
	links map[localLink]chan localMessage
}

// LocalTransport is the endpoint of one rank of a LocalNetwork.
type LocalTransport struct {
	rank     int
	network  *LocalNetwork
	sent     atomic.Int64
	received atomic.Int64
}

var _ collective.Transport = (*LocalTransport)(nil)

// NewLocalNetwork returns the n endpoints of a fresh in-process network,
// indexed by rank.
func NewLocalNetwork(n int) []*LocalTransport {
	ln := &LocalNetwork{
		size:  n,
		links: make(map[localLink]chan localMessage),
	}
	transports := make([]*LocalTransport, n)
	for i := range transports {
		transports[i] = &LocalTransport{rank: i, network: ln}
	}
	return transports
}

func (ln *LocalNetwork) link(src, dst int, tag collective.Tag) chan localMessage {
	ln.mu.Lock()
	defer ln.mu.Unlock()
	l := localLink{src: src, dst: dst, tag: tag}
	ch, ok := ln.links[l]
	if !ok {
		ch = make(chan localMessage, localLinkCapacity)
		ln.links[l] = ch
	}
	return ch
}

func (t *LocalTransport) Rank() int {
	return t.rank
}

func (t *LocalTransport) Size() int {
	return t.network.size
}

// Sent returns the number of messages sent so far.
func (t *LocalTransport) Sent() int64 {
	return t.sent.Load()
}

// Received returns the number of messages received so far.
func (t *LocalTransport) Received() int64 {
	return t.received.Load()
}

func (t *LocalTransport) Send(ctx context.Context, dst int, tag collective.Tag, kind collective.Kind, count int, payload []byte) error {
	if dst < 0 || dst >= t.network.size || dst == t.rank {
		return fmt.Errorf("invalid destination rank %d", dst)
	}
	msg := localMessage{kind: kind, count: count, payload: append([]byte(nil), payload...)}
	select {
	case t.network.link(t.rank, dst, tag) <- msg:
		t.sent.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *LocalTransport) Recv(ctx context.Context, src int, tag collective.Tag, kind collective.Kind, count int, payload []byte) error {
	if src < 0 || src >= t.network.size || src == t.rank {
		return fmt.Errorf("invalid source rank %d", src)
	}
	select {
	case msg := <-t.network.link(src, t.rank, tag):
		t.received.Inc()
		if msg.kind != kind || msg.count != count {
			return fmt.Errorf("rank %d sent %d %s, expected %d %s", src, msg.count, msg.kind, count, kind)
		}
		if len(msg.payload) != len(payload) {
			return fmt.Errorf("rank %d sent %d bytes, expected %d", src, len(msg.payload), len(payload))
		}
		copy(payload, msg.payload)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
