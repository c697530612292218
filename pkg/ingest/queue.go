// Package ingest provides the bounded event queue sitting between the
// HTTP event endpoints and the pipeline engine. A single consumer
// serializes all ledger mutations; producers never block.
package ingest

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// EventType classifies a queued platform event.
type EventType string

const (
	EventMessage        EventType = "message"
	EventMessageDeleted EventType = "message_deleted"
)

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("ingest queue full")

// Op is one queued event. Payload is the raw JSON event body, possibly
// backed by a pooled buffer owned by the wrapping Item.
type Op struct {
	Type    EventType
	Payload []byte
	// Seq is a monotonic enqueue sequence assigned on accept.
	Seq uint64
}

// Item wraps an Op and owns its pooled buffer. The consumer must call
// Done exactly once after processing.
type Item struct {
	Op *Op

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

var opPool = sync.Pool{New: func() any { return &Op{} }}

// maxPooledBuffer caps the size of buffers returned to the pool so a
// single oversized event body cannot pin memory.
var maxPooledBuffer = 256 * 1024

// Done releases the pooled buffer and op.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			if cap(it.buf.B) <= maxPooledBuffer {
				bytebufferpool.Put(it.buf)
			}
			it.buf = nil
		}
		if it.Op != nil {
			it.Op.Payload = nil
			opPool.Put(it.Op)
			it.Op = nil
		}
	})
}

// Queue is a bounded in-memory event queue. Safe for concurrent
// producers; intended for a single consumer running RunWorker.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
	seq      uint64
}

// NewQueue creates a bounded queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// TryEnqueue copies payload into a pooled buffer and enqueues it
// without blocking. A full queue returns ErrQueueFull and the event is
// dropped; the caller decides how to report that upstream.
func (q *Queue) TryEnqueue(typ EventType, payload []byte) error {
	op := opPool.Get().(*Op)
	op.Type = typ
	op.Seq = atomic.AddUint64(&q.seq, 1)

	var bb *bytebufferpool.ByteBuffer
	if len(payload) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], payload...)
		op.Payload = bb.B[:len(payload)]
	} else {
		op.Payload = nil
	}

	// Item carries the once guard, so it is always allocated fresh
	it := &Item{Op: op, buf: bb}

	select {
	case q.ch <- it:
		return nil
	default:
		it.Done()
		atomic.AddUint64(&q.dropped, 1)
		return ErrQueueFull
	}
}

// RunWorker consumes items until stop is closed or the queue is closed,
// invoking handler for each. Done is called even when handler returns
// an error; handler errors are the handler's to log.
func (q *Queue) RunWorker(stop <-chan struct{}, handler func(*Op) error) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				_ = handler(it.Op)
			}(it)
		case <-stop:
			return
		}
	}
}

// CloseAndDrain closes the queue and releases any remaining items.
func (q *Queue) CloseAndDrain() {
	close(q.ch)
	for it := range q.ch {
		it.Done()
	}
}

// Len returns the number of queued items.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns how many events were rejected by a full queue.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
