package server

import (
	"fmt"
	"sort"

	"cozychat/internal/chat"
)

// Hub is the single owner of session membership. All registration,
// unregistration, listing and fan-out is serialized through its run loop, so
// no connection handler ever touches the member list directly and joins or
// leaves cannot race a broadcast in progress.
//
// Outgoing frames are encrypted once here and the same ciphertext line is
// queued to every recipient; a recipient that cannot keep up is dropped
// without delaying the rest of the fan-out.
type Hub struct {
	cipher chat.Cipher
	logger chat.Logger
	clock  chat.Clock

	reqs chan func(*hubState)
	stop chan struct{}
	wg   chan struct{} // closed when the run loop has exited
}

// hubState is the registry owned exclusively by the run loop.
type hubState struct {
	sessions map[string]*session
}

// NewHub creates a Hub and starts its run loop.
func NewHub(cipher chat.Cipher, logger chat.Logger, clock chat.Clock) *Hub {
	h := &Hub{
		cipher: cipher,
		logger: logger,
		clock:  clock,
		reqs:   make(chan func(*hubState)),
		stop:   make(chan struct{}),
		wg:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.wg)

	state := &hubState{sessions: make(map[string]*session)}
	for {
		select {
		case req := <-h.reqs:
			req(state)
		case <-h.stop:
			for _, sess := range state.sessions {
				sess.drop()
			}
			state.sessions = make(map[string]*session)
			return
		}
	}
}

// do runs fn inside the owner loop and waits for it to complete.
func (h *Hub) do(fn func(*hubState)) {
	done := make(chan struct{})
	select {
	case h.reqs <- func(s *hubState) {
		fn(s)
		close(done)
	}:
		<-done
	case <-h.stop:
	}
}

// Stop shuts the hub down and drops all sessions.
func (h *Hub) Stop() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
	<-h.wg
}

// Register adds a session for username. It fails with ErrDuplicateUsername
// if an active session already holds that exact username.
func (h *Hub) Register(username string) (*session, error) {
	var (
		sess *session
		err  error
	)
	h.do(func(s *hubState) {
		if _, taken := s.sessions[username]; taken {
			err = fmt.Errorf("registering %q: %w", username, chat.ErrDuplicateUsername)
			return
		}
		sess = newSession(username, h.clock.Now())
		s.sessions[username] = sess
	})
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("registering %q: hub stopped", username)
	}
	h.logger.Info("session registered", "username", username)
	return sess, nil
}

// Unregister removes sess from the registry and drops it. Idempotent: a
// second call, or a call after the hub already dropped the session, is a
// no-op.
func (h *Hub) Unregister(sess *session) {
	if sess == nil {
		return
	}
	h.do(func(s *hubState) {
		if current, ok := s.sessions[sess.username]; ok && current == sess {
			delete(s.sessions, sess.username)
		}
	})
	sess.drop()
}

// List returns a snapshot of the active sessions, ordered by username.
func (h *Hub) List() []chat.SessionInfo {
	var infos []chat.SessionInfo
	h.do(func(s *hubState) {
		for _, sess := range s.sessions {
			infos = append(infos, chat.SessionInfo{
				Username:    sess.username,
				ConnectedAt: sess.connectedAt,
			})
		}
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].Username < infos[j].Username })
	return infos
}

// IsActive reports whether username currently holds a session.
func (h *Hub) IsActive(username string) bool {
	active := false
	h.do(func(s *hubState) {
		_, active = s.sessions[username]
	})
	return active
}

// Broadcast fans a chat message out to every active session, the sender
// included: the sender's own client re-renders the echoed line in its self
// color instead of locally echoing.
func (h *Hub) Broadcast(msg chat.Message) {
	line := msg.Sender + ": " + msg.Body
	h.deliver(line, nil)
}

// Announce fans a system line out to every active session except those named
// in except.
func (h *Hub) Announce(text string, except ...string) {
	var skip map[string]bool
	if len(except) > 0 {
		skip = make(map[string]bool, len(except))
		for _, name := range except {
			skip[name] = true
		}
	}
	h.deliver(text, skip)
}

// SendTo queues a line for a single session. It reports false if the user
// has no active session or the session could not accept the frame.
func (h *Hub) SendTo(username, text string) bool {
	ct, err := h.cipher.Encrypt(text)
	if err != nil {
		h.logger.Error("encrypting frame", "error", err)
		return false
	}

	ok := false
	h.do(func(s *hubState) {
		sess, found := s.sessions[username]
		if !found {
			return
		}
		ok = sess.enqueue(ct)
		if !ok {
			h.evict(s, sess)
		}
	})
	return ok
}

// deliver encrypts text once and queues the ciphertext to every session not
// in skip. A recipient that cannot accept the frame is evicted; delivery to
// the remaining recipients continues.
func (h *Hub) deliver(text string, skip map[string]bool) {
	ct, err := h.cipher.Encrypt(text)
	if err != nil {
		h.logger.Error("encrypting frame", "error", err)
		return
	}

	h.do(func(s *hubState) {
		for username, sess := range s.sessions {
			if skip[username] {
				continue
			}
			if !sess.enqueue(ct) {
				h.evict(s, sess)
			}
		}
	})
}

// evict removes a dead or stalled session mid-loop. Called only from inside
// the run loop.
func (h *Hub) evict(s *hubState, sess *session) {
	delete(s.sessions, sess.username)
	sess.drop()
	h.logger.Warn("session evicted", "username", sess.username, "reason", "send queue full or closed")
}
