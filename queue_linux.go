//go:build linux

package wgobfs

import (
	"context"
	"fmt"

	"github.com/florianl/go-nfqueue"
)

// nfqueuePacket is one datagram handed from the library's callback to
// Receive, along with the packet ID SetVerdict must echo back.
type nfqueuePacket struct {
	id      uint32
	payload []byte
}

// nfQueue adapts github.com/florianl/go-nfqueue's callback-driven API to
// the synchronous Queue interface Worker expects: RegisterWithErrorFunc
// invokes our callback on its own goroutine for every packet, and that
// callback just forwards to a channel Receive reads from, keeping exactly
// one goroutine per worker reading packets in arrival order (spec.md §5).
type nfQueue struct {
	nf     *nfqueue.Nfqueue
	cancel context.CancelFunc
	pkts   chan nfqueuePacket
	errs   chan error
}

// openNFQueueLinux binds queueNum via NFQUEUE, the kernel-userspace
// queueing facility spec.md §1 names as an external collaborator.
func openNFQueueLinux(queueNum uint16) (Queue, error) {
	cfg := nfqueue.Config{
		NfQueue:      queueNum,
		MaxPacketLen: 0xffff,
		MaxQueueLen:  0xff,
		Copymode:     nfqueue.NfQnlCopyPacket,
	}

	nf, err := nfqueue.Open(&cfg)
	if err != nil {
		return nil, fmt.Errorf("open nfqueue: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &nfQueue{
		nf:     nf,
		cancel: cancel,
		pkts:   make(chan nfqueuePacket, 16),
		errs:   make(chan error, 1),
	}

	fn := func(a nfqueue.Attribute) int {
		if a.PacketID == nil {
			return 0
		}
		var payload []byte
		if a.Payload != nil {
			payload = *a.Payload
		}
		select {
		case q.pkts <- nfqueuePacket{id: *a.PacketID, payload: payload}:
		case <-ctx.Done():
		}
		return 0
	}
	errFn := func(e error) int {
		select {
		case q.errs <- e:
		default:
		}
		return 0
	}

	if err := nf.RegisterWithErrorFunc(ctx, fn, errFn); err != nil {
		nf.Close()
		cancel()
		return nil, fmt.Errorf("register nfqueue callback: %w", err)
	}

	return q, nil
}

func (q *nfQueue) Receive(buf []byte) (int, any, error) {
	select {
	case pkt := <-q.pkts:
		if len(pkt.payload) == 0 {
			return 0, pkt.id, ErrPacketTooShort{Length: 0}
		}
		n := copy(buf, pkt.payload)
		return n, pkt.id, nil
	case err := <-q.errs:
		return 0, nil, err
	}
}

func (q *nfQueue) SetVerdict(handle any, verdict Verdict, payload []byte) error {
	id, ok := handle.(uint32)
	if !ok {
		return fmt.Errorf("set verdict: invalid packet handle %v", handle)
	}
	if verdict == Drop {
		return q.nf.SetVerdict(id, nfqueue.NfDrop)
	}
	return q.nf.SetVerdictModPacket(id, nfqueue.NfAccept, payload)
}

func (q *nfQueue) Close() error {
	q.cancel()
	return q.nf.Close()
}

// LinuxQueueOpener is the QueueOpener used by cmd/wgobfsd on Linux.
var LinuxQueueOpener QueueOpener = openNFQueueLinux
