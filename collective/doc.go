// Package collective implements a one-to-all broadcast built from pairwise
// send and receive operations.
//
// # Core Components
//
// Transport: the point-to-point substrate the broadcast runs on. It must be
// reliable, ordered between any fixed pair of ranks and blocking on receive.
//
// Schedule: a pure function telling the participant at a given virtual rank
// whom to send to or receive from in each round of a binomial tree.
//
// Broadcast: the one-call operation. It validates its input, exchanges the
// element count, then moves the payload over the same tree.
//
// # Virtual Ranks
//
// Ranks are renumbered so that the root becomes virtual rank 0:
//
//	virtual = (rank - root + size) mod size
//
// The schedule is written in virtual ranks and every peer is translated back
// with Devirtualize before it reaches the transport.
//
// # Rounds
//
// In the round starting with mask = 2^(k-1), the participants below mask
// already hold the data and send it to v+mask. After ceil(log2 size) rounds
// every participant holds an exact copy of the root's buffer.
//
// # Failures
//
// Input is validated by every participant before any traffic. A transport
// error in the middle of the schedule is returned wrapped in a
// *TransportError that names the round and the peer. It matches
// ErrTransport and the cause with errors.Is. Participants that already
// received the payload keep it, the others keep whatever their buffer held.
package collective
