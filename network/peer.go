package network

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/luca-patrignani/treecast/collective"
)

const (
	framesPath = "/v1/frames"
	healthPath = "/v1/health"

	defaultRetryInterval = 5 * time.Millisecond
	defaultMaxFrameSize  = 1 << 30
)

// Peer is an helper struct for communication between nodes.
// rank is the identifier of the Peer, addresses[i] is the address to reach
// the Peer with rank i.
type Peer struct {
	rank      int
	addresses map[int]string

	server *http.Server
	client *http.Client
	inbox  *inbox

	timeout       time.Duration
	retryInterval time.Duration
	limiter       *rate.Limiter
	tlsConfig     *tls.Config
	signer        *Signer
	logger        *slog.Logger
	maxFrameSize  int64

	mu     sync.Mutex
	seq    map[route]uint64
	closed atomic.Bool
}

var _ collective.Transport = (*Peer)(nil)

// NewPeer creates a Peer and starts serving on l.
func NewPeer(rank int, addresses map[int]string, l net.Listener, timeout time.Duration) *Peer {
	p := NewPeerWithOptions(rank, addresses, WithTimeout(timeout))
	p.Start(l)
	return p
}

// NewPeerWithOptions creates a Peer which does not serve until Start is
// called.
func NewPeerWithOptions(rank int, addresses map[int]string, opts ...PeerOption) *Peer {
	p := &Peer{
		rank:          rank,
		addresses:     copyMap(addresses),
		inbox:         newInbox(),
		retryInterval: defaultRetryInterval,
		logger:        slog.New(slog.DiscardHandler),
		maxFrameSize:  defaultMaxFrameSize,
		seq:           make(map[route]uint64),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.limiter = rate.NewLimiter(rate.Every(p.retryInterval), 1)
	p.client = &http.Client{
		Transport: &http.Transport{TLSClientConfig: p.tlsConfig},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post(framesPath, p.handleFrame)
	r.Get(healthPath, p.handleHealth)
	p.server = &http.Server{
		Addr:              trimScheme(addresses[rank]),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return p
}

// Start serves frames on l, wrapping it in TLS when a certificate is set.
func (p *Peer) Start(l net.Listener) {
	if p.tlsConfig != nil {
		l = tls.NewListener(l, p.tlsConfig)
	}
	go func() {
		err := p.server.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("peer server stopped", "rank", p.rank, "err", err)
		}
	}()
}

func (p *Peer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.inbox.close()
	p.client.CloseIdleConnections()
	return p.server.Shutdown(context.Background())
}

func (p *Peer) Rank() int {
	return p.rank
}

func (p *Peer) Size() int {
	return len(p.addresses)
}

// Addresses returns a copy of the roster.
func (p *Peer) Addresses() map[int]string {
	return copyMap(p.addresses)
}

// Send posts payload to dst on tag and returns once dst acknowledged it.
func (p *Peer) Send(ctx context.Context, dst int, tag collective.Tag, kind collective.Kind, count int, payload []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if _, ok := p.addresses[dst]; !ok || dst == p.rank {
		return fmt.Errorf("invalid destination rank %d", dst)
	}
	f := Frame{
		Sender:   uint32(p.rank),
		Receiver: uint32(dst),
		Tag:      uint32(tag),
		Seq:      p.nextSeq(route{peer: dst, tag: tag}),
		Kind:     uint32(kind),
		Count:    uint32(count),
		Payload:  payload,
	}
	if p.signer != nil {
		sig, err := p.signer.sign(f)
		if err != nil {
			return fmt.Errorf("sign frame: %w", err)
		}
		f.Signature = sig
	}
	body, err := encodeFrame(&f)
	if err != nil {
		return err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	var lastErr error
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return errors.Join(fmt.Errorf("connection attempts to rank %d timed out", dst), lastErr)
		}
		code, err := p.post(ctx, dst, body)
		switch {
		case err != nil:
			lastErr = err
		case code == http.StatusAccepted:
			return nil
		case code >= 400 && code < 500:
			return fmt.Errorf("rank %d refused the frame with status code %d", dst, code)
		default:
			lastErr = fmt.Errorf("unsuccessful status code %d", code)
		}
	}
}

// Recv waits for the next frame from src on tag and copies its payload.
func (p *Peer) Recv(ctx context.Context, src int, tag collective.Tag, kind collective.Kind, count int, payload []byte) error {
	if _, ok := p.addresses[src]; !ok || src == p.rank {
		return fmt.Errorf("invalid source rank %d", src)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	f, err := p.inbox.take(ctx, route{peer: src, tag: tag})
	if err != nil {
		return fmt.Errorf("waiting for rank %d on %s channel: %w", src, tag, err)
	}
	if collective.Kind(f.Kind) != kind || int(f.Count) != count {
		return fmt.Errorf("rank %d sent %d %s, expected %d %s", src, f.Count, collective.Kind(f.Kind), count, kind)
	}
	if len(f.Payload) != len(payload) {
		return fmt.Errorf("rank %d sent %d bytes, expected %d", src, len(f.Payload), len(payload))
	}
	copy(payload, f.Payload)
	return nil
}

// Ping waits until the peer with the given rank answers on its health
// endpoint.
func (p *Peer) Ping(ctx context.Context, rank int) error {
	if _, ok := p.addresses[rank]; !ok {
		return fmt.Errorf("invalid rank %d", rank)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	var lastErr error
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return errors.Join(fmt.Errorf("rank %d did not answer", rank), lastErr)
		}
		h, err := p.health(ctx, rank)
		if err != nil {
			lastErr = err
			continue
		}
		if h.Rank != rank {
			return fmt.Errorf("address of rank %d is served by rank %d", rank, h.Rank)
		}
		return nil
	}
}

type healthResponse struct {
	Rank int `json:"rank"`
	Size int `json:"size"`
}

func (p *Peer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(healthResponse{Rank: p.rank, Size: p.Size()}); err != nil {
		p.logger.Warn("write health response", "err", err)
	}
}

func (p *Peer) handleFrame(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, p.maxFrameSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	f, err := decodeFrame(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if int(f.Receiver) != p.rank {
		http.Error(w, fmt.Sprintf("frame for rank %d delivered to rank %d", f.Receiver, p.rank), http.StatusNotAcceptable)
		return
	}
	if _, ok := p.addresses[int(f.Sender)]; !ok || int(f.Sender) == p.rank {
		http.Error(w, fmt.Sprintf("unknown sender %d", f.Sender), http.StatusNotAcceptable)
		return
	}
	if p.signer != nil {
		if err := p.signer.verify(f); err != nil {
			p.logger.Warn("refused frame", "rank", p.rank, "sender", f.Sender, "err", err)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	}
	if !p.inbox.put(f) {
		p.logger.Debug("duplicate frame", "rank", p.rank, "sender", f.Sender, "tag", collective.Tag(f.Tag), "seq", f.Seq)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (p *Peer) post(ctx context.Context, dst int, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url(dst)+framesPath, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (p *Peer) health(ctx context.Context, rank int) (healthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url(rank)+healthPath, nil)
	if err != nil {
		return healthResponse{}, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return healthResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return healthResponse{}, fmt.Errorf("unsuccessful status code %d", resp.StatusCode)
	}
	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return healthResponse{}, err
	}
	return h, nil
}

func (p *Peer) nextSeq(r route) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq[r]++
	return p.seq[r]
}

func (p *Peer) url(rank int) string {
	addr := p.addresses[rank]
	if strings.Contains(addr, "://") {
		return addr
	}
	if p.tlsConfig != nil {
		return "https://" + addr
	}
	return "http://" + addr
}

func trimScheme(addr string) string {
	if i := strings.Index(addr, "://"); i >= 0 {
		return addr[i+3:]
	}
	return addr
}

// CreateAddresses returns n free addresses localhost:PORT.
func CreateAddresses(n int) map[int]string {
	addresses := make(map[int]string)
	for i := 0; i < n; i++ {
		l, err := net.Listen("tcp", "localhost:0")
		if err != nil {
			panic(err)
		}
		addresses[i] = l.Addr().String()
		if err := l.Close(); err != nil {
			panic(err)
		}
	}
	return addresses
}

// CreateListeners returns n listeners on localhost and their addresses.
func CreateListeners(n int) (map[int]net.Listener, map[int]string) {
	listeners := make(map[int]net.Listener)
	addresses := make(map[int]string)
	for i := 0; i < n; i++ {
		l, err := net.Listen("tcp", "localhost:0")
		if err != nil {
			panic(err)
		}
		listeners[i] = l
		addresses[i] = l.Addr().String()
	}
	return listeners, addresses
}

func copyMap(original map[int]string) map[int]string {
	copied := make(map[int]string)
	for k, v := range original {
		copied[k] = v
	}
	return copied
}
