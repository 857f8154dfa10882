package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Entry struct {
	Port uint16
	Info string
}

func New(info string, port uint16) (*Discover, error) {
	return NewWithPortRange(info, port, port, 2)
}

type handler struct {
	info string
}

func (h handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte(h.info)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func NewWithPortRange(info string, startPort, endPort uint16, attempts uint) (*Discover, error) {
	return NewWithOptions(info,
		WithPortRange(startPort, endPort),
		WithAttempts(attempts),
	)
}

// Port returns the port this participant announces itself on.
func (d *Discover) Port() uint16 {
	return d.port
}

// Collect waits for n distinct entries.
func (d *Discover) Collect(ctx context.Context, n int) ([]Entry, error) {
	entries := make([]Entry, 0, n)
	for len(entries) < n {
		select {
		case e := <-d.Entries:
			entries = append(entries, e)
		case <-ctx.Done():
			return entries, fmt.Errorf("found %d of %d participants: %w", len(entries), n, ctx.Err())
		}
	}
	return entries, nil
}

func (d *Discover) search() {
	client := http.Client{Timeout: time.Second}
	for port := d.startPort; port <= d.endPort && port >= d.startPort; port++ {
		if port == d.port || d.isSeen(port) {
			continue
		}
		resp, err := client.Get(fmt.Sprintf("http://%s:%d", d.host, port))
		if err != nil {
			continue
		}
		buf, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil || resp.StatusCode != http.StatusOK {
			continue
		}
		d.markSeen(port)
		select {
		case d.Entries <- Entry{Port: port, Info: string(buf)}:
		case <-d.done:
			return
		}
	}
}

func (d *Discover) isSeen(port uint16) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[port]
	return ok
}

func (d *Discover) markSeen(port uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[port] = struct{}{}
}

func (d *Discover) Close() error {
	d.closeOnce.Do(func() { close(d.done) })
	return d.server.Shutdown(context.Background())
}
