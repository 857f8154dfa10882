package collective

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Numeric is the closed set of element types a broadcast can carry.
type Numeric interface {
	int32 | float32 | float64
}

// Kind is the transport tag of an element type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt32
	KindFloat32
	KindFloat64
)

// Size returns the width in bytes of one element of kind k.
func (k Kind) Size() int {
	switch k {
	case KindInt32, KindFloat32:
		return 4
	case KindFloat64:
		return 8
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	default:
		return "invalid"
	}
}

// ParseKind accepts the names returned by Kind.String plus the usual C
// spellings ("int", "float", "double").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int32", "int":
		return KindInt32, nil
	case "float32", "float":
		return KindFloat32, nil
	case "float64", "double":
		return KindFloat64, nil
	default:
		return KindInvalid, fmt.Errorf("unknown element kind %q", s)
	}
}

// KindOf returns the kind of T.
func KindOf[T Numeric]() Kind {
	var zero T
	switch any(zero).(type) {
	case int32:
		return KindInt32
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	}
	return KindInvalid
}

// Marshal writes the little-endian image of src into dst, which must hold
// exactly len(src)*KindOf[T]().Size() bytes.
func Marshal[T Numeric](dst []byte, src []T) error {
	width := KindOf[T]().Size()
	if len(dst) != len(src)*width {
		return fmt.Errorf("marshal: %d bytes for %d elements of width %d", len(dst), len(src), width)
	}
	switch s := any(src).(type) {
	case []int32:
		for i, v := range s {
			binary.LittleEndian.PutUint32(dst[4*i:], uint32(v))
		}
	case []float32:
		for i, v := range s {
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
		}
	case []float64:
		for i, v := range s {
			binary.LittleEndian.PutUint64(dst[8*i:], math.Float64bits(v))
		}
	}
	return nil
}

// Unmarshal overwrites dst with the elements encoded in src.
func Unmarshal[T Numeric](dst []T, src []byte) error {
	width := KindOf[T]().Size()
	if len(src) != len(dst)*width {
		return fmt.Errorf("unmarshal: %d bytes for %d elements of width %d", len(src), len(dst), width)
	}
	switch d := any(dst).(type) {
	case []int32:
		for i := range d {
			d[i] = int32(binary.LittleEndian.Uint32(src[4*i:]))
		}
	case []float32:
		for i := range d {
			d[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
		}
	case []float64:
		for i := range d {
			d[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[8*i:]))
		}
	}
	return nil
}
