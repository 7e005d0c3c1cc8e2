package capture

import "sync/atomic"

// Message is one element of a session's output stream: either a chunk of
// raw sample bytes or an error reported while the session keeps running.
type Message struct {
	Data []byte
	Err  error
}

// queue is a bounded stream that never blocks the producer. When full, the
// oldest message is discarded. push and close must not race each other;
// Session serializes them under its mutex.
type queue struct {
	ch      chan Message
	closed  bool
	dropped atomic.Uint64
}

func newQueue(size int) *queue {
	if size < 1 {
		size = 1
	}
	return &queue{ch: make(chan Message, size)}
}

func (q *queue) push(m Message) {
	if q.closed {
		return
	}
	for {
		select {
		case q.ch <- m:
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

func (q *queue) close() {
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
