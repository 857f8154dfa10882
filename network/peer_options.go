package network

import (
	"crypto/tls"
	"crypto/x509"
	"log/slog"
	"time"
)

type PeerOption func(*Peer)

// WithTimeout bounds every Send and Recv. Zero waits forever.
func WithTimeout(timeout time.Duration) PeerOption {
	return func(p *Peer) {
		p.timeout = timeout
	}
}

// WithRetryInterval sets the pause between two attempts to post a frame.
func WithRetryInterval(interval time.Duration) PeerOption {
	return func(p *Peer) {
		if interval > 0 {
			p.retryInterval = interval
		}
	}
}

// WithCertificate serves and dials over TLS presenting cert.
func WithCertificate(cert tls.Certificate) PeerOption {
	return func(p *Peer) {
		if p.tlsConfig == nil {
			p.tlsConfig = &tls.Config{}
		}
		p.tlsConfig.Certificates = append(p.tlsConfig.Certificates, cert)
	}
}

// WithLimitedCAs trusts only certPool, both for the peers we dial and for
// the client certificates presented to us.
func WithLimitedCAs(certPool *x509.CertPool) PeerOption {
	return func(p *Peer) {
		if p.tlsConfig == nil {
			p.tlsConfig = &tls.Config{}
		}
		p.tlsConfig.RootCAs = certPool
		p.tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		p.tlsConfig.ClientCAs = certPool
	}
}

// WithSigner signs outgoing frames and refuses unsigned or forged ones.
func WithSigner(signer *Signer) PeerOption {
	return func(p *Peer) {
		p.signer = signer
	}
}

func WithLogger(logger *slog.Logger) PeerOption {
	return func(p *Peer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMaxFrameSize limits the size of an encoded frame the peer accepts.
func WithMaxFrameSize(n int64) PeerOption {
	return func(p *Peer) {
		if n > 0 {
			p.maxFrameSize = n
		}
	}
}
