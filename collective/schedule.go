package collective

import "fmt"

// ActionKind tells what a participant does in one round of the tree.
type ActionKind uint8

const (
	NoAction ActionKind = iota
	SendTo
	ReceiveFrom
)

func (k ActionKind) String() string {
	switch k {
	case NoAction:
		return "none"
	case SendTo:
		return "send"
	case ReceiveFrom:
		return "recv"
	default:
		return fmt.Sprintf("ActionKind(%d)", uint8(k))
	}
}

// Action is the work of one participant in one round.
// Peer is a virtual rank and is meaningless when Kind is NoAction.
type Action struct {
	Kind ActionKind
	Peer int
}

// Step returns the action of virtual rank v in the round starting with mask.
// Participants below mask already hold the data, participants in
// [mask, 2*mask) receive it in this round.
func Step(v, mask, size int) Action {
	if v < mask {
		if v+mask < size {
			return Action{Kind: SendTo, Peer: v + mask}
		}
		return Action{Kind: NoAction}
	}
	if v < 2*mask {
		return Action{Kind: ReceiveFrom, Peer: v - mask}
	}
	return Action{Kind: NoAction}
}

// Schedule returns the action of virtual rank v for every round.
// len(Schedule(v, size)) == Rounds(size) for every v.
func Schedule(v, size int) []Action {
	actions := make([]Action, 0, Rounds(size))
	for mask := 1; mask < size; mask <<= 1 {
		actions = append(actions, Step(v, mask, size))
	}
	return actions
}

// Rounds returns ceil(log2(size)), the number of rounds a broadcast among
// size participants takes. A single participant needs no round.
func Rounds(size int) int {
	rounds := 0
	for mask := 1; mask < size; mask <<= 1 {
		rounds++
	}
	return rounds
}
