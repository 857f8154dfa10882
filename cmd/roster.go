package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"

	"go.dedis.ch/kyber/v4"

	"github.com/luca-patrignani/treecast/config"
	"github.com/luca-patrignani/treecast/discovery"
	"github.com/luca-patrignani/treecast/network"
)

// announcement is what a participant publishes through discovery.
type announcement struct {
	Address   string `json:"address"`
	PublicKey string `json:"public_key,omitempty"`
}

// createRoster sorts addresses and returns them indexed by rank together
// with the rank of self.
func createRoster(addresses []string, self string) (map[int]string, int, error) {
	sorted := append([]string(nil), addresses...)
	sort.Strings(sorted)
	roster := make(map[int]string, len(sorted))
	myRank := -1
	for i, addr := range sorted {
		if i > 0 && sorted[i-1] == addr {
			return nil, 0, fmt.Errorf("address %s listed twice", addr)
		}
		roster[i] = addr
		if addr == self {
			myRank = i
		}
	}
	if myRank < 0 {
		return nil, 0, fmt.Errorf("own address %s missing from the roster", self)
	}
	return roster, myRank, nil
}

// resolvePeers completes the configured peer addresses from the listen
// address: "42:9000" on a listener at 192.168.0.1 becomes 192.168.0.42:9000
// and a missing port defaults to the listen port. A completed address must
// lie in subnet when subnet is known. The result includes self.
func resolvePeers(self string, subnet *net.IPNet, peers []string) ([]string, error) {
	localIP, selfPort, err := net.SplitHostPort(self)
	if err != nil {
		return nil, err
	}
	defaultPort, err := strconv.Atoi(selfPort)
	if err != nil {
		return nil, err
	}
	base := net.ParseIP(localIP).To4()
	resolved := []string{self}
	for _, addr := range peers {
		host, port, err := withDefaultPort(addr, defaultPort)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", addr, err)
		}
		if !isPartialIP(host) {
			resolved = append(resolved, net.JoinHostPort(host, port))
			continue
		}
		if base == nil {
			return nil, fmt.Errorf("cannot complete %q from %s", addr, localIP)
		}
		ip, err := completeIP(base, host)
		if err != nil {
			return nil, fmt.Errorf("could not complete %q: %w", addr, err)
		}
		if subnet != nil && !subnet.Contains(ip) {
			return nil, fmt.Errorf("%q completes to %v outside %v", addr, ip, subnet)
		}
		resolved = append(resolved, net.JoinHostPort(ip.String(), port))
	}
	return resolved, nil
}

// discoverPeers announces self on the discovery port range and waits for
// the expected number of other participants.
// The returned Discover keeps announcing self and must be closed by the
// caller once every participant is connected.
func discoverPeers(ctx context.Context, cfg *config.Config, self announcement) ([]announcement, *discovery.Discover, error) {
	info, err := json.Marshal(self)
	if err != nil {
		return nil, nil, err
	}
	d, err := discovery.NewWithOptions(string(info),
		discovery.WithHost(cfg.Discovery.Host),
		discovery.WithPortRange(cfg.Discovery.StartPort, cfg.Discovery.EndPort),
		discovery.WithAttempts(uint(cfg.DiscoveryTimeout().Seconds())+1),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("discovery: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.DiscoveryTimeout())
	defer cancel()
	entries, err := d.Collect(ctx, cfg.Discovery.Expect)
	if err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("discovery: %w", err)
	}
	found := make([]announcement, 0, len(entries))
	for _, e := range entries {
		var a announcement
		if err := json.Unmarshal([]byte(e.Info), &a); err != nil {
			d.Close()
			return nil, nil, fmt.Errorf("discovery: port %d: %w", e.Port, err)
		}
		found = append(found, a)
	}
	return found, d, nil
}

// publicKeys maps every rank of the roster to its public key.
func publicKeys(roster map[int]string, keys map[string]string) (map[int]kyber.Point, error) {
	points := make(map[int]kyber.Point, len(roster))
	for rank, addr := range roster {
		hexKey, ok := keys[addr]
		if !ok {
			return nil, fmt.Errorf("no public key for %s", addr)
		}
		point, err := network.ParsePublicKey(hexKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", addr, err)
		}
		points[rank] = point
	}
	return points, nil
}

// testConnections waits until every other participant answers.
func testConnections(ctx context.Context, peer *network.Peer) error {
	fatal := make(chan error)
	for rank := range peer.Size() {
		if rank == peer.Rank() {
			continue
		}
		go func() {
			fatal <- peer.Ping(ctx, rank)
		}()
	}
	var errs []error
	for range peer.Size() - 1 {
		if err := <-fatal; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
