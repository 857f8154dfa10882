package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"

	"go.dedis.ch/kyber/v4"

	"github.com/luca-patrignani/treecast/collective"
)

func TestBroadcast(t *testing.T) {
	n := 10
	listeners, addresses := CreateListeners(n)
	root := 3
	fatal := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			p := NewPeer(i, addresses, listeners[i], 30*time.Second)
			defer func() {
				fatal <- p.Close()
			}()
			time.Sleep(time.Millisecond * 20 * time.Duration(p.Rank()))
			in := []float64(nil)
			if i == root {
				in = []float64{0, float64(10 * i), 0.75}
			}
			recv, err := collective.Broadcast(context.Background(), p, in, root)
			if err != nil {
				fatal <- err
				return
			}
			if err := collective.Barrier(context.Background(), p); err != nil {
				fatal <- err
				return
			}
			if len(recv) != 3 {
				fatal <- fmt.Errorf("expected length 3, %v received", recv)
				return
			}
			if recv[1] != float64(root*10) {
				fatal <- fmt.Errorf("expected %d, actual %v", root*10, recv[1])
				return
			}
		}(i)
	}
	for i := 0; i < n; i++ {
		err := <-fatal
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestBroadcastTwoPeers(t *testing.T) {
	listeners, addresses := CreateListeners(2)
	fatal := make(chan error)
	for i := 0; i < 2; i++ {
		go func() {
			p := NewPeer(i, addresses, listeners[i], 30*time.Second)
			defer func() {
				fatal <- p.Close()
			}()
			for root := 0; root < 2; root++ {
				time.Sleep(100 * time.Millisecond * time.Duration(i+1))
				in := []int32(nil)
				if i == root {
					in = []int32{int32(root)}
				}
				recv, err := collective.Broadcast(context.Background(), p, in, root)
				if err != nil {
					fatal <- err
					return
				}
				if recv[0] != int32(root) {
					fatal <- fmt.Errorf("from peer %d: expected %d, actual %d", i, root, recv[0])
					return
				}
			}
		}()
	}
	for i := 0; i < 2; i++ {
		err := <-fatal
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestBroadcastTimeout(t *testing.T) {
	n := 10
	listeners, addresses := CreateListeners(n)
	root := 0
	fatal := make(chan error, n)
	for i := 0; i < n-1; i++ {
		go func() {
			p := NewPeer(i, addresses, listeners[i], time.Second)
			defer p.Close()
			in := []int32(nil)
			if i == root {
				in = []int32{1, 2, 3}
			}
			_, err := collective.Broadcast(context.Background(), p, in, root)
			if err == nil {
				err = collective.Barrier(context.Background(), p)
			}
			if err != nil {
				fatal <- fmt.Errorf("from player %d: %w", i, err)
				return
			}
			fatal <- nil
		}()
	}
	for i := 0; i < n-1; i++ {
		err := <-fatal
		if err == nil {
			t.Fatal("expected every peer to time out")
		}
		if !errors.Is(err, collective.ErrTransport) {
			t.Fatalf("expected a transport failure, actual %v", err)
		}
		t.Log(err)
	}
}

func TestSignedBroadcast(t *testing.T) {
	n := 5
	listeners, addresses := CreateListeners(n)
	privates := make([]kyber.Scalar, n)
	roster := make(map[int]kyber.Point, n)
	for i := range privates {
		privates[i], roster[i] = GenerateKeyPair()
	}
	data := []int32{-5, -1, 0, 7}
	fatal := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			p := NewPeerWithOptions(i, addresses,
				WithTimeout(30*time.Second),
				WithSigner(NewSigner(privates[i], roster)),
			)
			p.Start(listeners[i])
			defer func() {
				fatal <- p.Close()
			}()
			in := []int32(nil)
			if i == 2 {
				in = data
			}
			recv, err := collective.Broadcast(context.Background(), p, in, 2)
			if err != nil {
				fatal <- err
				return
			}
			if !slices.Equal(recv, data) {
				fatal <- fmt.Errorf("from peer %d: expected %v, actual %v", i, data, recv)
				return
			}
			if err := collective.Barrier(context.Background(), p); err != nil {
				fatal <- err
			}
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-fatal; err != nil {
			t.Fatal(err)
		}
	}
}

func TestForgedFrameRefused(t *testing.T) {
	listeners, addresses := CreateListeners(2)
	priv0, pub0 := GenerateKeyPair()
	priv1, pub1 := GenerateKeyPair()
	roster := map[int]kyber.Point{0: pub0, 1: pub1}

	receiver := NewPeerWithOptions(1, addresses, WithTimeout(time.Second), WithSigner(NewSigner(priv1, roster)))
	receiver.Start(listeners[1])
	defer receiver.Close()

	// rank 0 signs with the key of rank 1
	forger := NewPeerWithOptions(0, addresses, WithTimeout(time.Second), WithSigner(NewSigner(priv1, roster)))
	forger.Start(listeners[0])
	defer forger.Close()
	err := forger.Send(context.Background(), 1, collective.TagPayload, collective.KindInt32, 0, nil)
	if err == nil {
		t.Fatal("expected the forged frame to be refused")
	}

	unsigned := NewPeerWithOptions(0, addresses, WithTimeout(time.Second))
	defer unsigned.Close()
	if err := unsigned.Send(context.Background(), 1, collective.TagPayload, collective.KindInt32, 0, nil); err == nil {
		t.Fatal("expected the unsigned frame to be refused")
	}

	honest := NewPeerWithOptions(0, addresses, WithTimeout(time.Second), WithSigner(NewSigner(priv0, roster)))
	defer honest.Close()
	if err := honest.Send(context.Background(), 1, collective.TagPayload, collective.KindInt32, 0, nil); err != nil {
		t.Fatal(err)
	}
	if err := receiver.Recv(context.Background(), 0, collective.TagPayload, collective.KindInt32, 0, nil); err != nil {
		t.Fatal(err)
	}
}

func TestDuplicateFramesDropped(t *testing.T) {
	listeners, addresses := CreateListeners(2)
	receiver := NewPeer(1, addresses, listeners[1], time.Second)
	defer receiver.Close()
	sender := NewPeerWithOptions(0, addresses)
	defer sender.Close()

	f := Frame{Sender: 0, Receiver: 1, Tag: uint32(collective.TagCount), Seq: 1, Kind: uint32(collective.KindInt32), Count: 1, Payload: []byte{7, 0, 0, 0}}
	body, err := encodeFrame(&f)
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		code, err := sender.post(context.Background(), 1, body)
		if err != nil {
			t.Fatal(err)
		}
		if code != http.StatusAccepted {
			t.Fatalf("expected %d, actual %d", http.StatusAccepted, code)
		}
	}
	payload := make([]byte, 4)
	if err := receiver.Recv(context.Background(), 0, collective.TagCount, collective.KindInt32, 1, payload); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := receiver.Recv(ctx, 0, collective.TagCount, collective.KindInt32, 1, payload); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the duplicates to be dropped, actual %v", err)
	}
}

func TestRecvKindMismatch(t *testing.T) {
	listeners, addresses := CreateListeners(2)
	peers := make([]*Peer, 2)
	for i := range peers {
		peers[i] = NewPeer(i, addresses, listeners[i], 5*time.Second)
		defer peers[i].Close()
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := peers[0].Send(context.Background(), 1, collective.TagPayload, collective.KindFloat32, 1, make([]byte, 4)); err != nil {
			t.Error(err)
		}
	}()
	err := peers[1].Recv(context.Background(), 0, collective.TagPayload, collective.KindInt32, 1, make([]byte, 4))
	if err == nil {
		t.Fatal("expected a kind mismatch")
	}
	wg.Wait()
}

func TestPing(t *testing.T) {
	listeners, addresses := CreateListeners(3)
	peers := make([]*Peer, 3)
	for i := range peers {
		peers[i] = NewPeer(i, addresses, listeners[i], 5*time.Second)
		defer peers[i].Close()
	}
	for i := range peers {
		if err := peers[0].Ping(context.Background(), i); err != nil {
			t.Fatal(err)
		}
	}
	if err := peers[0].Ping(context.Background(), 3); err == nil {
		t.Fatal("expected an error for an unknown rank")
	}
}

func TestRecvAfterClose(t *testing.T) {
	listeners, addresses := CreateListeners(2)
	p := NewPeer(0, addresses, listeners[0], 0)
	done := make(chan error)
	go func() {
		done <- p.Recv(context.Background(), 1, collective.TagPayload, collective.KindInt32, 0, nil)
	}()
	time.Sleep(50 * time.Millisecond)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, actual %v", err)
	}
	listeners[1].Close()
}
