package collective

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRoot     = errors.New("collective: root out of range")
	ErrEmptyPayload    = errors.New("collective: empty payload")
	ErrPayloadTooLarge = errors.New("collective: payload exceeds transport count")
	ErrTransport       = errors.New("collective: transport failure")
)

// TransportError reports a send or receive that failed inside the schedule.
// It matches ErrTransport with errors.Is.
type TransportError struct {
	Op    ActionKind
	Round int
	Peer  int // real rank
	Tag   Tag
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("collective: %s with rank %d on %s channel in round %d: %v", e.Op, e.Peer, e.Tag, e.Round, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}
