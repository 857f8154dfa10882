package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/treecast/bench"
	"github.com/luca-patrignani/treecast/collective"
	"github.com/luca-patrignani/treecast/config"
	"github.com/luca-patrignani/treecast/ledger"
	"github.com/luca-patrignani/treecast/network"
	"github.com/luca-patrignani/treecast/store"
)

func newRunCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Join a broadcast as one participant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging.Level)
			if err != nil {
				return err
			}
			renderBanner()
			_, err = run(cmd.Context(), cfg, logger)
			return err
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "treecast.yaml", "path of the YAML configuration")
	return cmd
}

// run joins the roster described by cfg, takes part in one broadcast and
// records the delivery.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Block, error) {
	// every participant shares the payload section, so an empty one fails
	// everywhere before any traffic
	if cfg.Payload.Empty() {
		return ledger.Block{}, fmt.Errorf("payload: %w", collective.ErrEmptyPayload)
	}
	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return ledger.Block{}, fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}
	self := l.Addr().String()
	pterm.Info.Println("Listening on " + self)
	subnet, err := listenerSubnet(l)
	if err != nil {
		logger.Debug("partial peer addresses are not checked against a subnet", "err", err)
	}

	addresses, keys, stop, err := gatherRoster(ctx, cfg, self, subnet, logger)
	if err != nil {
		l.Close()
		return ledger.Block{}, err
	}
	defer stop()
	roster, myRank, err := createRoster(addresses, self)
	if err != nil {
		l.Close()
		return ledger.Block{}, err
	}
	pterm.Info.Printfln("Your rank is %d of %d", myRank, len(roster))

	opts, err := peerOptions(cfg, roster, keys, logger)
	if err != nil {
		l.Close()
		return ledger.Block{}, err
	}
	peer := network.NewPeerWithOptions(myRank, roster, opts...)
	peer.Start(l)
	defer func() {
		if err := peer.Close(); err != nil {
			logger.Warn("closing peer", "err", err)
		}
	}()

	spinner, _ := pterm.DefaultSpinner.Start("Trying to establish the connections with the other participants...")
	if err := testConnections(ctx, peer); err != nil {
		spinner.Fail()
		return ledger.Block{}, err
	}
	spinner.Success()
	pterm.Success.Printfln("Successfully connected with %d participants", peer.Size()-1)

	chain := ledger.NewBlockchain()
	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.Open(ctx, cfg.Store.Path)
		if err != nil {
			return ledger.Block{}, err
		}
		defer st.Close()
		chain, err = st.LoadChain(ctx)
		if err != nil {
			return ledger.Block{}, err
		}
	}

	in, err := inputBuffer(cfg, myRank)
	if err != nil {
		return ledger.Block{}, err
	}
	spinner, _ = pterm.DefaultSpinner.Start(fmt.Sprintf("Broadcasting %s elements from rank %d ...", cfg.ElementKind(), cfg.Root))
	var stats collective.Stats
	start := time.Now()
	out, err := collective.BroadcastBuffer(ctx, peer, in, cfg.Root,
		collective.WithLogger(logger),
		collective.WithStats(&stats),
	)
	if err != nil {
		spinner.Fail()
		return ledger.Block{}, fmt.Errorf("broadcast: %w", err)
	}
	if err := collective.Barrier(ctx, peer, collective.WithLogger(logger)); err != nil {
		spinner.Fail()
		return ledger.Block{}, fmt.Errorf("barrier: %w", err)
	}
	elapsed := time.Since(start)
	spinner.Success()

	d := ledger.NewDelivery(out, cfg.Root, peer.Size(), myRank, stats)
	d.Elapsed = elapsed.Nanoseconds()
	block, err := chain.Append(d)
	if err != nil {
		return ledger.Block{}, err
	}
	if st != nil {
		if err := st.AppendBlock(ctx, block); err != nil {
			return ledger.Block{}, err
		}
	}
	renderPanels(deliveryPanel(block, out))
	return block, nil
}

// gatherRoster returns the frame addresses of every participant, self
// included, and the public keys announced with them. stop ends the
// announcement of self.
func gatherRoster(ctx context.Context, cfg *config.Config, self string, subnet *net.IPNet, logger *slog.Logger) (addresses []string, keys map[string]string, stop func(), err error) {
	stop = func() {}
	keys = make(map[string]string, len(cfg.Signing.PublicKeys)+1)
	for addr, k := range cfg.Signing.PublicKeys {
		keys[addr] = k
	}
	var ownKey string
	if cfg.Signing.Enabled() {
		private, err := network.ParsePrivateKey(cfg.Signing.PrivateKey)
		if err != nil {
			return nil, nil, nil, err
		}
		ownKey, err = network.EncodePublicKey(network.PublicKey(private))
		if err != nil {
			return nil, nil, nil, err
		}
		keys[self] = ownKey
	}

	if !cfg.Discovery.Enabled {
		addresses, err = resolvePeers(self, subnet, cfg.Peers)
		return addresses, keys, stop, err
	}

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Waiting for %d participants ...", cfg.Discovery.Expect))
	found, d, err := discoverPeers(ctx, cfg, announcement{Address: self, PublicKey: ownKey})
	if err != nil {
		spinner.Fail()
		return nil, nil, nil, err
	}
	spinner.Success()
	stop = func() {
		if err := d.Close(); err != nil {
			logger.Warn("closing discovery", "err", err)
		}
	}
	addresses = []string{self}
	for _, a := range found {
		logger.Info("discovered participant", "address", a.Address)
		addresses = append(addresses, a.Address)
		if a.PublicKey != "" {
			keys[a.Address] = a.PublicKey
		}
	}
	return addresses, keys, stop, nil
}

func peerOptions(cfg *config.Config, roster map[int]string, keys map[string]string, logger *slog.Logger) ([]network.PeerOption, error) {
	opts := []network.PeerOption{
		network.WithTimeout(cfg.TimeoutDuration()),
		network.WithRetryInterval(cfg.RetryIntervalDuration()),
		network.WithLogger(logger),
	}
	if cfg.MaxFrameSize > 0 {
		opts = append(opts, network.WithMaxFrameSize(cfg.MaxFrameSize))
	}
	if cfg.TLS.Enabled() {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tls: %w", err)
		}
		opts = append(opts, network.WithCertificate(cert))
		if len(cfg.TLS.CAFiles) > 0 {
			pool := x509.NewCertPool()
			for _, path := range cfg.TLS.CAFiles {
				pem, err := os.ReadFile(path)
				if err != nil {
					return nil, fmt.Errorf("tls: %w", err)
				}
				if !pool.AppendCertsFromPEM(pem) {
					return nil, fmt.Errorf("tls: no certificate found in %s", path)
				}
			}
			opts = append(opts, network.WithLimitedCAs(pool))
		}
	}
	if cfg.Signing.Enabled() {
		private, err := network.ParsePrivateKey(cfg.Signing.PrivateKey)
		if err != nil {
			return nil, err
		}
		points, err := publicKeys(roster, keys)
		if err != nil {
			return nil, fmt.Errorf("signing: %w", err)
		}
		opts = append(opts, network.WithSigner(network.NewSigner(private, points)))
	}
	return opts, nil
}

// inputBuffer returns the buffer rank passes to the broadcast. Only the
// root holds data.
func inputBuffer(cfg *config.Config, rank int) (collective.Buffer, error) {
	kind := cfg.ElementKind()
	if rank != cfg.Root {
		return collective.Buffer{Kind: kind}, nil
	}
	if cfg.Payload.Generate > 0 {
		return bench.Generate(kind, cfg.Payload.Generate), nil
	}
	values := cfg.Payload.Values
	switch kind {
	case collective.KindInt32:
		data := make([]int32, len(values))
		for i, v := range values {
			data[i] = int32(v)
		}
		return collective.Int32Buffer(data), nil
	case collective.KindFloat32:
		data := make([]float32, len(values))
		for i, v := range values {
			data[i] = float32(v)
		}
		return collective.Float32Buffer(data), nil
	case collective.KindFloat64:
		return collective.Float64Buffer(append([]float64(nil), values...)), nil
	default:
		return collective.Buffer{}, fmt.Errorf("unknown element kind %s", kind)
	}
}
