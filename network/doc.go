// Package network provides the point-to-point transports the collective
// broadcast runs on.
//
// # Core Components
//
// Peer: a node reachable over HTTP or HTTPS. Every peer runs a small server
// receiving frames and a client posting frames to the other peers of the
// roster. Peer implements collective.Transport.
//
// LocalNetwork: an in-process network of LocalTransports connected by
// channels, used to simulate many participants inside one process.
//
// # Frames
//
// A frame carries sender, receiver, tag, a per-channel sequence number, the
// element kind and count and the payload. Frames are encoded with
// go.dedis.ch/protobuf and posted to /v1/frames. The receiver queues them
// per (sender, tag) channel, so a frame may arrive before the matching Recv
// is called.
//
// # Retries
//
// A sender posts again until the receiver acknowledges the frame with
// 202 Accepted or the timeout expires. The sequence number lets the receiver
// drop duplicates of a frame whose acknowledgement was lost.
//
// # Signatures
//
// With WithSigner every frame is signed with a Schnorr signature on
// Ed25519 and receivers refuse frames that do not verify against the public
// key of their sender.
package network
