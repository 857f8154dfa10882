package discovery

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

type Discover struct {
	Entries   chan Entry
	port      uint16
	startPort uint16
	endPort   uint16
	host      string
	server    *http.Server
	attempts  uint
	interval  time.Duration

	mu        sync.Mutex
	seen      map[uint16]struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type option func(*Discover)

func NewWithOptions(info string, opts ...option) (*Discover, error) {
	d := &Discover{
		Entries:   make(chan Entry),
		startPort: 9000,
		endPort:   9010,
		host:      "localhost",
		attempts:  1,
		interval:  time.Second,
		seen:      make(map[uint16]struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.startPort > d.endPort {
		return nil, fmt.Errorf("empty port range %d-%d", d.startPort, d.endPort)
	}

	var l net.Listener
	var err error
	for port := uint32(d.startPort); port <= uint32(d.endPort); port++ {
		l, err = net.Listen("tcp", fmt.Sprintf("%s:%d", d.host, port))
		if err == nil {
			d.port = uint16(port)
			break
		}
	}
	if err != nil {
		return nil, err
	}
	d.server = &http.Server{
		Addr:              l.Addr().String(),
		Handler:           handler{info: info},
		ReadHeaderTimeout: time.Second,
	}
	go func() {
		if err := d.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	}()
	go func() {
		for range d.attempts {
			d.search()
			select {
			case <-time.After(d.interval):
			case <-d.done:
				return
			}
		}
	}()
	return d, nil
}

func WithPortRange(startPort, endPort uint16) option {
	return func(d *Discover) {
		d.startPort = startPort
		d.endPort = endPort
	}
}

func WithPort(port uint16) option {
	return WithPortRange(port, port)
}

func WithAttempts(attempts uint) option {
	return func(d *Discover) {
		d.attempts = attempts
	}
}

// WithInterval sets the pause between two scans of the port range.
func WithInterval(interval time.Duration) option {
	return func(d *Discover) {
		d.interval = interval
	}
}

func WithHost(host string) option {
	return func(d *Discover) {
		d.host = host
	}
}
