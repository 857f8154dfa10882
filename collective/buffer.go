package collective

import (
	"bytes"
	"context"
	"fmt"
)

// Buffer holds a payload whose element kind is only known at run time.
// Exactly the slice selected by Kind is meant to be populated.
type Buffer struct {
	Kind     Kind
	Int32s   []int32
	Float32s []float32
	Float64s []float64
}

func Int32Buffer(data []int32) Buffer {
	return Buffer{Kind: KindInt32, Int32s: data}
}

func Float32Buffer(data []float32) Buffer {
	return Buffer{Kind: KindFloat32, Float32s: data}
}

func Float64Buffer(data []float64) Buffer {
	return Buffer{Kind: KindFloat64, Float64s: data}
}

// Len returns the number of elements of the selected kind.
func (b Buffer) Len() int {
	switch b.Kind {
	case KindInt32:
		return len(b.Int32s)
	case KindFloat32:
		return len(b.Float32s)
	case KindFloat64:
		return len(b.Float64s)
	default:
		return 0
	}
}

// Consistent reports whether the selected slice is the only populated one
// and is not empty.
func (b Buffer) Consistent() bool {
	i, f, d := len(b.Int32s), len(b.Float32s), len(b.Float64s)
	switch b.Kind {
	case KindInt32:
		return i > 0 && f == 0 && d == 0
	case KindFloat32:
		return f > 0 && i == 0 && d == 0
	case KindFloat64:
		return d > 0 && i == 0 && f == 0
	default:
		return false
	}
}

// Bytes returns the little-endian image of the selected slice.
func (b Buffer) Bytes() []byte {
	out := make([]byte, b.Len()*b.Kind.Size())
	switch b.Kind {
	case KindInt32:
		_ = Marshal(out, b.Int32s)
	case KindFloat32:
		_ = Marshal(out, b.Float32s)
	case KindFloat64:
		_ = Marshal(out, b.Float64s)
	}
	return out
}

// Equal compares kinds and the bit patterns of the selected slices, so NaNs
// compare equal to themselves.
func (b Buffer) Equal(o Buffer) bool {
	return b.Kind == o.Kind && bytes.Equal(b.Bytes(), o.Bytes())
}

func (b Buffer) String() string {
	switch b.Kind {
	case KindInt32:
		return fmt.Sprintf("Buffer(%s, %d, %v)", b.Kind, b.Len(), b.Int32s)
	case KindFloat32:
		return fmt.Sprintf("Buffer(%s, %d, %v)", b.Kind, b.Len(), b.Float32s)
	case KindFloat64:
		return fmt.Sprintf("Buffer(%s, %d, %v)", b.Kind, b.Len(), b.Float64s)
	default:
		return "Buffer(invalid)"
	}
}

// BroadcastBuffer is Broadcast for a Buffer. Every participant must pass
// the same Kind; the root's buffer must be Consistent.
func BroadcastBuffer(ctx context.Context, t Transport, b Buffer, root int, opts ...Option) (Buffer, error) {
	if b.Kind.Size() == 0 {
		return Buffer{}, fmt.Errorf("collective: unknown element kind %d", uint8(b.Kind))
	}
	if t.Rank() == root && !b.Consistent() {
		if b.Len() > 0 {
			return Buffer{}, fmt.Errorf("%w: other kinds than %s populated", ErrEmptyPayload, b.Kind)
		}
		return Buffer{}, ErrEmptyPayload
	}
	var out Buffer
	var err error
	switch b.Kind {
	case KindInt32:
		out.Int32s, err = Broadcast(ctx, t, b.Int32s, root, opts...)
	case KindFloat32:
		out.Float32s, err = Broadcast(ctx, t, b.Float32s, root, opts...)
	default:
		out.Float64s, err = Broadcast(ctx, t, b.Float64s, root, opts...)
	}
	if err != nil {
		return Buffer{}, err
	}
	out.Kind = b.Kind
	return out, nil
}
