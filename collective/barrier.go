package collective

import (
	"context"
	"fmt"
)

// Barrier returns once every participant of t has entered it.
//
// Empty tokens are gathered towards rank 0 along the broadcast tree walked
// backwards, then rank 0 releases everybody along the tree. Both directions
// use TagControl.
func Barrier(ctx context.Context, t Transport, opts ...Option) error {
	s := newSettings(opts)
	rank, size := t.Rank(), t.Size()
	if err := validate(rank, size, 0, 0, false); err != nil {
		return err
	}
	top := 1
	for top<<1 < size {
		top <<= 1
	}
	round := 0
	for mask := top; mask >= 1 && size > 1; mask >>= 1 {
		round++
		a := Step(rank, mask, size)
		var err error
		switch a.Kind {
		case SendTo:
			err = t.Recv(ctx, a.Peer, TagControl, KindInt32, 0, nil)
		case ReceiveFrom:
			err = t.Send(ctx, a.Peer, TagControl, KindInt32, 0, nil)
		}
		if err != nil {
			op := ReceiveFrom
			if a.Kind == ReceiveFrom {
				op = SendTo
			}
			return &TransportError{Op: op, Round: round, Peer: a.Peer, Tag: TagControl, Err: err}
		}
	}
	if _, err := walk(ctx, t, rank, 0, TagControl, KindInt32, 0, nil, s); err != nil {
		return fmt.Errorf("barrier release: %w", err)
	}
	return nil
}
