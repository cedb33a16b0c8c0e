package server

import (
	"sync"
	"time"
)

// outboundDepth is the per-session send queue capacity. A session whose
// queue fills up (a stalled reader) is dropped rather than allowed to block
// fan-out to everyone else.
const outboundDepth = 64

// session is one registered connection, owned by the Hub. Connection
// handlers and the broadcaster hold references but never mutate it: the hub
// enqueues ciphertext lines and the session's writer goroutine drains them.
type session struct {
	username    string
	connectedAt time.Time

	out  chan string
	done chan struct{}
	once sync.Once
}

func newSession(username string, connectedAt time.Time) *session {
	return &session{
		username:    username,
		connectedAt: connectedAt,
		out:         make(chan string, outboundDepth),
		done:        make(chan struct{}),
	}
}

// enqueue queues one ciphertext line without blocking. It reports false if
// the session is already dropped or its queue is full.
func (s *session) enqueue(line string) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- line:
		return true
	default:
		return false
	}
}

// drop marks the session dead. Idempotent.
func (s *session) drop() {
	s.once.Do(func() { close(s.done) })
}
