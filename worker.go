package wgobfs

import (
	"context"
	"log"
	"math/rand/v2"
	"time"
)

// headroom is the spare capacity (beyond MTU) every worker's packet buffer
// carries, per spec.md §3: enough for the largest possible ballast (65) plus
// the length byte and nonce (13), with slack for header growth.
const headroom = 80

// Queue is the kernel packet-queue binding a Worker drives. It is the
// "external collaborator" spec.md §1 names: something that hands over
// mutable datagram buffers and accepts a per-packet verdict. queue_linux.go
// provides the concrete NFQUEUE-backed implementation; tests substitute a
// fake.
type Queue interface {
	// Receive blocks until a packet arrives, copies its payload into buf,
	// and returns the copied length plus an opaque handle used to submit
	// the verdict for that same packet.
	Receive(buf []byte) (n int, handle any, err error)
	// SetVerdict submits Accept (with the given replacement payload, which
	// may be a re-sliced view of the buffer passed to Receive) or Drop for
	// the packet identified by handle.
	SetVerdict(handle any, verdict Verdict, payload []byte) error
	// Close releases the queue binding.
	Close() error
}

// QueueOpener binds a queue number to a Queue. Implemented by
// openNFQueueLinux in queue_linux.go.
type QueueOpener func(queueNum uint16) (Queue, error)

// Worker owns one configured Rule for its entire lifetime: its packet
// buffer, its keepalive Dropper, and its RNG. None of this state is shared
// with any other worker (spec.md §5).
type Worker struct {
	rule    *Rule
	open    QueueOpener
	buf     []byte
	dropper *Dropper
	rng     *rand.Rand
}

// NewWorker constructs a Worker for rule, using open to bind its NFQUEUE
// when Run starts.
func NewWorker(rule *Rule, open QueueOpener) *Worker {
	return &Worker{
		rule: rule,
		open: open,
		buf:  make([]byte, rule.MTU+headroom),
		dropper: NewDropper(rule.KeepaliveMin, rule.KeepaliveMax, newWorkerRand(rule.Name)),
		rng:  newWorkerRand(rule.Name),
	}
}

// Run binds the worker's queue and serves packets until ctx is canceled.
// Every bind or receive failure is retried after a one-second backoff,
// reinitializing the queue handle each time, per spec.md §7.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.runOnce(ctx); err != nil {
			log.Printf("[wgobfs] queue %d (%s): %s; restarting in 1s", w.rule.Queue, w.rule.Name, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		return nil
	}
}

func (w *Worker) runOnce(ctx context.Context) error {
	q, err := w.open(w.rule.Queue)
	if err != nil {
		return ErrQueueBind{Queue: w.rule.Queue, Cause: err}
	}
	defer q.Close()

	log.Printf("[wgobfs] worker started: queue=%d name=%s direction=%v mtu=%d", w.rule.Queue, w.rule.Name, w.rule.Direction, w.rule.MTU)

	for {
		if ctx.Err() != nil {
			return nil
		}
		n, handle, err := q.Receive(w.buf)
		if err != nil {
			return err
		}
		newLen, verdict := w.dispatch(n)
		if err := q.SetVerdict(handle, verdict, w.buf[:newLen]); err != nil {
			log.Printf("[wgobfs] queue %d: set verdict: %s", w.rule.Queue, err)
		}
	}
}

// dispatch runs the obfuscate or deobfuscate transform according to the
// rule's configured direction.
func (w *Worker) dispatch(n int) (int, Verdict) {
	switch w.rule.Direction {
	case DirectionOut:
		return Obfuscate(w.buf, n, w.rule, w.dropper, w.rng, time.Now())
	default:
		return Deobfuscate(w.buf, n, w.rule)
	}
}
