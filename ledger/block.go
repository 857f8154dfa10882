package ledger

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/luca-patrignani/treecast/collective"
)

type Block struct {
	Index     int      `json:"index"`
	Timestamp int64    `json:"timestamp"`
	PrevHash  string   `json:"prev_hash"`
	Hash      string   `json:"hash"`
	Delivery  Delivery `json:"delivery"`
}

type Delivery struct {
	Root         int    `json:"root"`
	Participants int    `json:"participants"`
	Rank         int    `json:"rank"`
	Kind         string `json:"kind"`
	Count        int    `json:"count"`
	Rounds       int    `json:"rounds"`
	// Digest is the hex sha256 of the little-endian payload bytes.
	Digest string `json:"digest"`
	// Elapsed is the wall time of the broadcast in nanoseconds.
	Elapsed int64 `json:"elapsed"`
}

// NewDelivery describes buf as received by rank.
func NewDelivery(buf collective.Buffer, root, participants, rank int, stats collective.Stats) Delivery {
	return Delivery{
		Root:         root,
		Participants: participants,
		Rank:         rank,
		Kind:         buf.Kind.String(),
		Count:        buf.Len(),
		Rounds:       stats.Rounds,
		Digest:       Digest(buf),
	}
}

func Digest(buf collective.Buffer) string {
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
