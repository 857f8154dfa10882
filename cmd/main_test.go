package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/require"

	"github.com/luca-patrignani/treecast/bench"
	"github.com/luca-patrignani/treecast/collective"
	"github.com/luca-patrignani/treecast/config"
	"github.com/luca-patrignani/treecast/ledger"
	"github.com/luca-patrignani/treecast/network"
	"github.com/luca-patrignani/treecast/store"
)

func TestMain(m *testing.M) {
	pterm.DisableOutput()
	os.Exit(m.Run())
}

var discard = slog.New(slog.DiscardHandler)

func TestCreateRoster(t *testing.T) {
	roster, rank, err := createRoster([]string{"127.0.0.1:9003", "127.0.0.1:9001", "127.0.0.1:9002"}, "127.0.0.1:9002")
	require.NoError(t, err)
	require.Equal(t, 1, rank)
	require.Equal(t, map[int]string{0: "127.0.0.1:9001", 1: "127.0.0.1:9002", 2: "127.0.0.1:9003"}, roster)

	_, _, err = createRoster([]string{"a:1", "a:1"}, "a:1")
	require.ErrorContains(t, err, "twice")
	_, _, err = createRoster([]string{"a:1", "b:1"}, "c:1")
	require.ErrorContains(t, err, "missing")
}

func TestResolvePeers(t *testing.T) {
	got, err := resolvePeers("192.168.0.1:9000", nil, []string{"42", "15.42:9100", "10.0.0.7:9200", "localhost:9300"})
	require.NoError(t, err)
	require.Equal(t, []string{
		"192.168.0.1:9000",
		"192.168.0.42:9000",
		"192.168.15.42:9100",
		"10.0.0.7:9200",
		"localhost:9300",
	}, got)

	_, err = resolvePeers("192.168.0.1:9000", nil, []string{"a:b:c"})
	require.Error(t, err)
}

func TestResolvePeersWithinSubnet(t *testing.T) {
	_, subnet, err := net.ParseCIDR("192.168.0.0/24")
	require.NoError(t, err)

	got, err := resolvePeers("192.168.0.1:9000", subnet, []string{"42", "10.0.0.7:9200"})
	require.NoError(t, err)
	require.Equal(t, []string{"192.168.0.1:9000", "192.168.0.42:9000", "10.0.0.7:9200"}, got)

	_, err = resolvePeers("192.168.0.1:9000", subnet, []string{"15.42"})
	require.ErrorContains(t, err, "outside 192.168.0.0/24")
}

func TestInputBuffer(t *testing.T) {
	cfg := &config.Config{Root: 1, Kind: "int32", Payload: config.PayloadConfig{Values: []float64{1, 2.9, -3}}}
	b, err := inputBuffer(cfg, 1)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2, -3}, b.Int32s)

	b, err = inputBuffer(cfg, 0)
	require.NoError(t, err)
	require.Equal(t, collective.Buffer{Kind: collective.KindInt32}, b)

	cfg = &config.Config{Root: 0, Kind: "float32", Payload: config.PayloadConfig{Generate: 4}}
	b, err = inputBuffer(cfg, 0)
	require.NoError(t, err)
	require.Equal(t, []float32{0, 0.75, 1.5, 2.25}, b.Float32s)
}

// runAll runs one participant per config and returns their blocks by rank
// order of the configs.
func runAll(t *testing.T, configs []*config.Config) []ledger.Block {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	blocks := make([]ledger.Block, len(configs))
	fatal := make(chan error)
	for i, cfg := range configs {
		go func() {
			b, err := run(ctx, cfg, discard)
			blocks[i] = b
			fatal <- err
		}()
	}
	for range configs {
		if err := <-fatal; err != nil {
			t.Fatal(err)
		}
	}
	return blocks
}

func TestRun(t *testing.T) {
	n := 4
	addresses := network.CreateAddresses(n)
	values := []float64{1.5, -2.25, 3, 1e300, 0}

	configs := make([]*config.Config, n)
	for i := range n {
		cfg := &config.Config{
			Listen:        addresses[i],
			Root:          2,
			Kind:          "float64",
			Timeout:       "10s",
			RetryInterval: "10ms",
			Payload:       config.PayloadConfig{Values: values},
		}
		for j := range n {
			if j != i {
				cfg.Peers = append(cfg.Peers, addresses[j])
			}
		}
		cfg.ApplyDefaults()
		require.NoError(t, cfg.Validate())
		configs[i] = cfg
	}

	blocks := runAll(t, configs)
	want := ledger.Digest(collective.Float64Buffer(values))
	ranks := make(map[int]bool)
	for _, b := range blocks {
		require.Equal(t, 1, b.Index)
		require.Equal(t, want, b.Delivery.Digest)
		require.Equal(t, len(values), b.Delivery.Count)
		require.Equal(t, 2, b.Delivery.Root)
		require.Equal(t, n, b.Delivery.Participants)
		require.Equal(t, collective.Rounds(n), b.Delivery.Rounds)
		ranks[b.Delivery.Rank] = true
	}
	require.Len(t, ranks, n)
}

func TestRunEmptyPayloadFailsEverywhere(t *testing.T) {
	n := 3
	addresses := network.CreateAddresses(n)
	for i := range n {
		cfg := &config.Config{Listen: addresses[i], Root: 0, Timeout: "10s"}
		for j := range n {
			if j != i {
				cfg.Peers = append(cfg.Peers, addresses[j])
			}
		}
		cfg.ApplyDefaults()
		require.NoError(t, cfg.Validate())

		start := time.Now()
		_, err := run(context.Background(), cfg, discard)
		require.ErrorIs(t, err, collective.ErrEmptyPayload)
		require.Less(t, time.Since(start), time.Second)
	}
}

func TestRunSignedWithStore(t *testing.T) {
	n := 3
	addresses := network.CreateAddresses(n)
	dir := t.TempDir()

	privates := make([]string, n)
	publics := make(map[string]string, n)
	for i := range n {
		private, public := network.GenerateKeyPair()
		var err error
		privates[i], err = network.EncodePrivateKey(private)
		require.NoError(t, err)
		publics[addresses[i]], err = network.EncodePublicKey(public)
		require.NoError(t, err)
	}

	configs := make([]*config.Config, n)
	for i := range n {
		cfg := &config.Config{
			Listen:  addresses[i],
			Root:    0,
			Kind:    "int32",
			Timeout: "10s",
			Signing: config.SigningConfig{PrivateKey: privates[i], PublicKeys: publics},
			Store:   config.StoreConfig{Path: filepath.Join(dir, fmt.Sprintf("peer%d.sqlite", i))},
			Payload: config.PayloadConfig{Generate: 1000},
		}
		for j := range n {
			if j != i {
				cfg.Peers = append(cfg.Peers, addresses[j])
			}
		}
		cfg.ApplyDefaults()
		require.NoError(t, cfg.Validate())
		configs[i] = cfg
	}

	for round := 1; round <= 2; round++ {
		blocks := runAll(t, configs)
		want := ledger.Digest(bench.Generate(collective.KindInt32, 1000))
		for _, b := range blocks {
			require.Equal(t, round, b.Index)
			require.Equal(t, want, b.Delivery.Digest)
		}
	}

	ctx := context.Background()
	for _, cfg := range configs {
		st, err := store.Open(ctx, cfg.Store.Path)
		require.NoError(t, err)
		chain, err := st.LoadChain(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, chain.Len())
		require.NoError(t, st.Close())
		require.NoError(t, history(ctx, cfg.Store.Path, 0))
	}
}

func TestRunWithDiscovery(t *testing.T) {
	n := 3
	configs := make([]*config.Config, n)
	for i := range n {
		cfg := &config.Config{
			Root:    1,
			Kind:    "float32",
			Timeout: "10s",
			Discovery: config.DiscoveryConfig{
				Enabled:   true,
				StartPort: 9040,
				EndPort:   9050,
				Expect:    n - 1,
				Timeout:   "15s",
			},
			Payload: config.PayloadConfig{Generate: 64},
		}
		cfg.ApplyDefaults()
		require.NoError(t, cfg.Validate())
		configs[i] = cfg
	}
	blocks := runAll(t, configs)
	for _, b := range blocks {
		require.Equal(t, 64, b.Delivery.Count)
		require.Equal(t, "float32", b.Delivery.Kind)
	}
	require.Equal(t, blocks[0].Delivery.Digest, blocks[1].Delivery.Digest)
	require.Equal(t, blocks[1].Delivery.Digest, blocks[2].Delivery.Digest)
}

func TestBenchCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.sqlite")
	res, err := runBench(context.Background(), benchFlags{
		participants: 5,
		elements:     1000,
		kind:         "float64",
		root:         3,
		transport:    bench.TransportLocal,
		timeout:      time.Second,
		storePath:    path,
		level:        "error",
	})
	require.NoError(t, err)
	require.True(t, res.Verified)

	st, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.BenchRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, 5, runs[0].Participants)
	require.Equal(t, 3, runs[0].Root)
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"run", "bench", "keygen", "history"} {
		require.True(t, names[name], name)
	}

	root.SetArgs([]string{"keygen"})
	require.NoError(t, root.Execute())
}
