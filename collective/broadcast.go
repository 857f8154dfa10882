package collective

import (
	"context"
	"fmt"
	"log/slog"
)

// Broadcast delivers the root's buf to every participant of t and returns
// the local copy.
//
// On the root, buf is the payload and is returned as is. Other participants
// usually pass nil and get a freshly allocated slice; a non-nil buf is taken
// as the participant's replica of the root's input; it is validated like the
// root's and its backing array is reused when large enough.
//
// Every participant validates on its own before any traffic: root must be a
// rank of t, the payload must not be empty and must fit in MaxCount. The
// element count travels first, so that receivers can size their buffers, and
// a count that is not positive aborts the call before the payload round.
func Broadcast[T Numeric](ctx context.Context, t Transport, buf []T, root int, opts ...Option) ([]T, error) {
	s := newSettings(opts)
	rank, size := t.Rank(), t.Size()
	if err := validate(rank, size, root, len(buf), rank == root || buf != nil); err != nil {
		s.logger.Debug("broadcast rejected", "rank", rank, "root", root, "err", err)
		return nil, err
	}
	v := Virtualize(rank, root, size)

	count, err := exchangeCount(ctx, t, v, root, len(buf), s)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: negotiated count %d", ErrEmptyPayload, count)
	}

	out := buf
	if rank != root {
		if cap(buf) >= count {
			out = buf[:count]
		} else {
			out = make([]T, count)
		}
	}
	if err := broadcastPayload(ctx, t, v, root, out, s); err != nil {
		return nil, err
	}
	s.logger.Debug("broadcast done", "rank", rank, "root", root, "count", count, "kind", KindOf[T]())
	return out, nil
}

func validate(rank, size, root, n int, holdsData bool) error {
	if size <= 0 || rank < 0 || rank >= size {
		return fmt.Errorf("%w: rank %d of %d participants", ErrTransport, rank, size)
	}
	if root < 0 || root >= size {
		return fmt.Errorf("%w: root %d of %d participants", ErrInvalidRoot, root, size)
	}
	if holdsData && n == 0 {
		return ErrEmptyPayload
	}
	if n > MaxCount {
		return fmt.Errorf("%w: %d elements", ErrPayloadTooLarge, n)
	}
	return nil
}

// exchangeCount spreads the root's element count over the tree.
func exchangeCount(ctx context.Context, t Transport, v, root, count int, s *settings) (int, error) {
	frame := make([]byte, KindInt32.Size())
	if err := Marshal(frame, []int32{int32(count)}); err != nil {
		return 0, err
	}
	if _, err := walk(ctx, t, v, root, TagCount, KindInt32, 1, frame, s); err != nil {
		return 0, err
	}
	agreed := []int32{0}
	if err := Unmarshal(agreed, frame); err != nil {
		return 0, err
	}
	return int(agreed[0]), nil
}

func broadcastPayload[T Numeric](ctx context.Context, t Transport, v, root int, buf []T, s *settings) error {
	kind := KindOf[T]()
	frame := make([]byte, len(buf)*kind.Size())
	if v == 0 {
		if err := Marshal(frame, buf); err != nil {
			return err
		}
	}
	rounds, err := walk(ctx, t, v, root, TagPayload, kind, len(buf), frame, s)
	if s.stats != nil {
		s.stats.Rounds = rounds
	}
	if err != nil {
		return err
	}
	if v == 0 {
		return nil
	}
	return Unmarshal(buf, frame)
}

// walk runs the broadcast tree once for a single frame. The frame is sent
// as is and overwritten by the receive. It returns the number of rounds
// walked.
func walk(ctx context.Context, t Transport, v, root int, tag Tag, kind Kind, count int, frame []byte, s *settings) (int, error) {
	size := t.Size()
	round := 0
	for mask := 1; mask < size; mask <<= 1 {
		round++
		a := Step(v, mask, size)
		if a.Kind == NoAction {
			continue
		}
		peer := Devirtualize(a.Peer, root, size)
		var err error
		if a.Kind == SendTo {
			err = t.Send(ctx, peer, tag, kind, count, frame)
		} else {
			err = t.Recv(ctx, peer, tag, kind, count, frame)
		}
		if err != nil {
			return round, &TransportError{Op: a.Kind, Round: round, Peer: peer, Tag: tag, Err: err}
		}
		if tag == TagPayload {
			s.record(a, len(frame))
		}
		if s.logger.Enabled(ctx, slog.LevelDebug) {
			s.logger.Debug("round", "tag", tag, "round", round, "action", a.Kind, "peer", peer, "bytes", len(frame))
		}
	}
	return round, nil
}
