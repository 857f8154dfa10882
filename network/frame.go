package network

import (
	"fmt"

	"go.dedis.ch/protobuf"

	"github.com/luca-patrignani/treecast/collective"
)

// Frame is the unit posted from one peer to another.
type Frame struct {
	Sender    uint32
	Receiver  uint32
	Tag       uint32
	Seq       uint64
	Kind      uint32
	Count     uint32
	Payload   []byte
	Signature []byte
}

func (f Frame) route() route {
	return route{peer: int(f.Sender), tag: collective.Tag(f.Tag)}
}

// signedBytes is the encoding of f with an empty signature.
func (f Frame) signedBytes() ([]byte, error) {
	f.Signature = nil
	return protobuf.Encode(&f)
}

func encodeFrame(f *Frame) ([]byte, error) {
	b, err := protobuf.Encode(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return b, nil
}

func decodeFrame(b []byte) (Frame, error) {
	var f Frame
	if err := protobuf.Decode(b, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}

// route identifies a channel seen from one end: the other peer and the tag.
type route struct {
	peer int
	tag  collective.Tag
}
