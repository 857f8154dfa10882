// Package bench measures broadcasts over a simulated cluster where every
// participant runs in its own goroutine.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/luca-patrignani/treecast/collective"
	"github.com/luca-patrignani/treecast/network"
)

const (
	TransportLocal = "local"
	TransportHTTP  = "http"

	// DefaultElements is the size of the reference run: 6,000,000 doubles.
	DefaultElements = 6000000
)

type Config struct {
	Participants int
	Elements     int
	Kind         collective.Kind
	Root         int
	Transport    string
	// Timeout bounds every transport call when Transport is TransportHTTP.
	Timeout time.Duration
	Logger  *slog.Logger
}

type Result struct {
	Config   Config
	Rounds   int
	Elapsed  time.Duration
	Verified bool
	// Mismatches counts the elements that differ from the generated
	// payload, summed over every participant.
	Mismatches int
}

// Throughput returns the payload bytes delivered per second, counting every
// non-root participant.
func (r Result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	bytes := float64(r.Config.Elements*r.Config.Kind.Size()) * float64(r.Config.Participants-1)
	return bytes / r.Elapsed.Seconds()
}

// Generate returns n elements of kind whose value at index i is i*0.75,
// converted to the element type.
func Generate(kind collective.Kind, n int) collective.Buffer {
	switch kind {
	case collective.KindInt32:
		data := make([]int32, n)
		for i := range data {
			data[i] = int32(float64(i) * 0.75)
		}
		return collective.Int32Buffer(data)
	case collective.KindFloat32:
		data := make([]float32, n)
		for i := range data {
			data[i] = float32(float64(i) * 0.75)
		}
		return collective.Float32Buffer(data)
	default:
		data := make([]float64, n)
		for i := range data {
			data[i] = float64(i) * 0.75
		}
		return collective.Float64Buffer(data)
	}
}

// Mismatches compares got against want element by element, bitwise for
// floating point kinds.
func Mismatches(got, want collective.Buffer) int {
	if got.Kind != want.Kind {
		return max(got.Len(), want.Len())
	}
	n := min(got.Len(), want.Len())
	diff := max(got.Len(), want.Len()) - n
	switch want.Kind {
	case collective.KindInt32:
		for i := range n {
			if got.Int32s[i] != want.Int32s[i] {
				diff++
			}
		}
	case collective.KindFloat32:
		for i := range n {
			if math.Float32bits(got.Float32s[i]) != math.Float32bits(want.Float32s[i]) {
				diff++
			}
		}
	case collective.KindFloat64:
		for i := range n {
			if math.Float64bits(got.Float64s[i]) != math.Float64bits(want.Float64s[i]) {
				diff++
			}
		}
	}
	return diff
}

// Run broadcasts a generated payload from cfg.Root to every participant,
// synchronized by a barrier before and after, and verifies what every
// participant received.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.Participants <= 0 {
		return Result{}, fmt.Errorf("participants must be > 0, got %d", cfg.Participants)
	}
	if cfg.Kind.Size() == 0 {
		return Result{}, fmt.Errorf("unknown element kind %s", cfg.Kind)
	}
	if cfg.Elements <= 0 {
		return Result{}, fmt.Errorf("%w: %d elements", collective.ErrEmptyPayload, cfg.Elements)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	transports, closeAll, err := cluster(cfg)
	if err != nil {
		return Result{}, err
	}
	defer closeAll()

	want := Generate(cfg.Kind, cfg.Elements)
	res := Result{Config: cfg}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		errs    = make([]error, cfg.Participants)
		elapsed time.Duration
	)
	for rank, t := range transports {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger := cfg.Logger.With("rank", rank)
			if err := collective.Barrier(ctx, t); err != nil {
				errs[rank] = fmt.Errorf("rank %d: start barrier: %w", rank, err)
				return
			}
			start := time.Now()
			var in collective.Buffer
			if rank == cfg.Root {
				in = want
			} else {
				in = collective.Buffer{Kind: cfg.Kind}
			}
			var stats collective.Stats
			got, err := collective.BroadcastBuffer(ctx, t, in, cfg.Root,
				collective.WithLogger(logger),
				collective.WithStats(&stats),
			)
			if err != nil {
				errs[rank] = fmt.Errorf("rank %d: %w", rank, err)
				return
			}
			if err := collective.Barrier(ctx, t); err != nil {
				errs[rank] = fmt.Errorf("rank %d: end barrier: %w", rank, err)
				return
			}
			took := time.Since(start)
			mu.Lock()
			defer mu.Unlock()
			elapsed = max(elapsed, took)
			res.Rounds = max(res.Rounds, stats.Rounds)
			res.Mismatches += Mismatches(got, want)
		}()
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return Result{}, err
	}
	res.Elapsed = elapsed
	res.Verified = res.Mismatches == 0
	cfg.Logger.Info("benchmark finished",
		"transport", cfg.Transport,
		"participants", cfg.Participants,
		"elements", cfg.Elements,
		"kind", cfg.Kind,
		"elapsed", res.Elapsed,
		"verified", res.Verified,
	)
	return res, nil
}

func cluster(cfg Config) ([]collective.Transport, func(), error) {
	switch cfg.Transport {
	case "", TransportLocal:
		local := network.NewLocalNetwork(cfg.Participants)
		transports := make([]collective.Transport, len(local))
		for i, t := range local {
			transports[i] = t
		}
		return transports, func() {}, nil
	case TransportHTTP:
		listeners, addresses := network.CreateListeners(cfg.Participants)
		peers := make([]*network.Peer, cfg.Participants)
		transports := make([]collective.Transport, cfg.Participants)
		for i := range peers {
			peers[i] = network.NewPeerWithOptions(i, addresses,
				network.WithTimeout(cfg.Timeout),
				network.WithLogger(cfg.Logger.With("rank", i)),
			)
			peers[i].Start(listeners[i])
			transports[i] = peers[i]
		}
		return transports, func() {
			for _, p := range peers {
				if err := p.Close(); err != nil {
					cfg.Logger.Warn("closing peer", "rank", p.Rank(), "err", err)
				}
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
