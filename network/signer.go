package network

import (
	"encoding/hex"
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/sign/schnorr"
	"go.dedis.ch/kyber/v4/suites"
	"go.dedis.ch/kyber/v4/util/key"
)

var suite suites.Suite = suites.MustFind("Ed25519")

// Signer signs outgoing frames with the local private key and verifies
// incoming ones with the public key of their sender.
type Signer struct {
	private kyber.Scalar
	roster  map[int]kyber.Point
}

// NewSigner returns a Signer. roster[i] is the public key of rank i.
func NewSigner(private kyber.Scalar, roster map[int]kyber.Point) *Signer {
	copied := make(map[int]kyber.Point, len(roster))
	for k, v := range roster {
		copied[k] = v
	}
	return &Signer{private: private, roster: copied}
}

func (s *Signer) sign(f Frame) ([]byte, error) {
	msg, err := f.signedBytes()
	if err != nil {
		return nil, err
	}
	return schnorr.Sign(suite, s.private, msg)
}

func (s *Signer) verify(f Frame) error {
	pub, ok := s.roster[int(f.Sender)]
	if !ok {
		return fmt.Errorf("no public key for rank %d", f.Sender)
	}
	if len(f.Signature) == 0 {
		return fmt.Errorf("frame from rank %d is not signed", f.Sender)
	}
	msg, err := f.signedBytes()
	if err != nil {
		return err
	}
	return schnorr.Verify(suite, pub, msg, f.Signature)
}

// GenerateKeyPair returns a fresh Ed25519 key pair.
func GenerateKeyPair() (kyber.Scalar, kyber.Point) {
	pair := key.NewKeyPair(suite)
	return pair.Private, pair.Public
}

// PublicKey returns the public key matching private.
func PublicKey(private kyber.Scalar) kyber.Point {
	return suite.Point().Mul(private, nil)
}

// EncodePrivateKey returns the hex encoding of a private key.
func EncodePrivateKey(private kyber.Scalar) (string, error) {
	b, err := private.MarshalBinary()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// EncodePublicKey returns the hex encoding of a public key.
func EncodePublicKey(public kyber.Point) (string, error) {
	b, err := public.MarshalBinary()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func ParsePrivateKey(s string) (kyber.Scalar, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	private := suite.Scalar()
	if err := private.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	return private, nil
}

func ParsePublicKey(s string) (kyber.Point, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	public := suite.Point()
	if err := public.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	return public, nil
}
