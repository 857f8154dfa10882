package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// completeIP replaces the trailing octets of base with the dotted octets of
// partial. An empty partial returns a copy of base.
func completeIP(base net.IP, partial string) (net.IP, error) {
	ip := append(net.IP(nil), base...)
	if partial == "" {
		return ip, nil
	}
	octets := strings.Split(partial, ".")
	if len(octets) > len(ip) {
		return nil, fmt.Errorf("%q has more octets than %v", partial, base)
	}
	offset := len(ip) - len(octets)
	for i, o := range octets {
		v, err := strconv.ParseUint(o, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("octet %q: %w", o, err)
		}
		ip[offset+i] = byte(v)
	}
	return ip, nil
}

// listenerSubnet returns the network of the interface owning the address l
// is bound to.
func listenerSubnet(l net.Listener) (*net.IPNet, error) {
	tcpAddr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("%v is not a TCP address", l.Addr())
	}
	if tcpAddr.IP == nil || tcpAddr.IP.IsUnspecified() {
		return nil, fmt.Errorf("listener bound to unspecified ip %v", tcpAddr.IP)
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if ok && ipnet.Contains(tcpAddr.IP) {
			return ipnet, nil
		}
	}
	return nil, fmt.Errorf("no interface owns %v", tcpAddr.IP)
}

// withDefaultPort splits addr, falling back to defaultPort when addr has
// no port.
func withDefaultPort(addr string, defaultPort int) (host, port string, err error) {
	host, port, err = net.SplitHostPort(addr)
	if err == nil {
		return host, port, nil
	}
	return net.SplitHostPort(net.JoinHostPort(addr, strconv.Itoa(defaultPort)))
}

// isPartialIP reports whether host is one to three dotted octets.
func isPartialIP(host string) bool {
	if host == "" || net.ParseIP(host) != nil {
		return false
	}
	octets := strings.Split(host, ".")
	if len(octets) > 3 {
		return false
	}
	for _, o := range octets {
		if _, err := strconv.ParseUint(o, 10, 8); err != nil {
			return false
		}
	}
	return true
}
