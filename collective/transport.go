package collective

import (
	"context"
	"fmt"
	"math"
)

// MaxCount is the largest element count a transport frame can describe.
// Counts travel as int32, like the count argument of MPI send/receive.
const MaxCount = math.MaxInt32

// Tag separates the logical channels between a pair of ranks.
type Tag uint8

const (
	TagCount Tag = iota
	TagPayload
	TagControl
)

func (t Tag) String() string {
	switch t {
	case TagCount:
		return "count"
	case TagPayload:
		return "payload"
	case TagControl:
		return "control"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Transport is the point-to-point substrate a broadcast runs on.
//
// Send and Recv block. Messages between a fixed pair of ranks on the same
// tag are delivered in order. Recv fills payload, which holds exactly
// count*kind.Size() bytes, and fails if the message does not match kind and
// count.
type Transport interface {
	Rank() int
	Size() int
	Send(ctx context.Context, dst int, tag Tag, kind Kind, count int, payload []byte) error
	Recv(ctx context.Context, src int, tag Tag, kind Kind, count int, payload []byte) error
}
