package server

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"cozychat/internal/chat"
)

// connState tracks the per-connection lifecycle:
// CONNECTING -> AUTHENTICATING -> ACTIVE -> CLOSING -> CLOSED.
type connState int

const (
	stateConnecting connState = iota
	stateAuthenticating
	stateActive
	stateClosing
	stateClosed
)

const (
	// authTimeout bounds how long a connection may sit in AUTHENTICATING
	// before sending its username frame.
	authTimeout = 30 * time.Second

	// writeTimeout bounds each per-recipient write so one stalled peer
	// cannot wedge its writer goroutine indefinitely.
	writeTimeout = 5 * time.Second
)

// connHandler reads framed ciphertext from one client connection, decrypts
// it and routes it: commands to the command processor, file frames to the
// upload capture, everything else to the broadcaster. All failures are local
// to this connection.
type connHandler struct {
	srv   *Server
	conn  net.Conn
	state connState

	sess   *session
	upload *uploadCapture
}

// uploadCapture spools the data frames of one in-flight upload to a
// temporary file, so a large upload never has to fit in server memory.
type uploadCapture struct {
	name    string
	target  string
	discard bool // rejected; swallow frames until __END__
	tmp     *os.File
	size    int64
}

// cleanup releases the spool file. Safe on a discarded capture.
func (u *uploadCapture) cleanup() {
	if u.tmp == nil {
		return
	}
	u.tmp.Close()
	os.Remove(u.tmp.Name())
	u.tmp = nil
}

func newConnHandler(srv *Server, conn net.Conn) *connHandler {
	return &connHandler{srv: srv, conn: conn, state: stateConnecting}
}

// run drives the connection to completion. It returns when the peer
// disconnects, fails authentication, or asks to quit.
func (h *connHandler) run() {
	defer h.close()

	scanner := bufio.NewScanner(h.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	if !h.authenticate(scanner) {
		return
	}

	h.srv.logger.Info("client active", "username", h.sess.username, "remote", h.conn.RemoteAddr())
	h.srv.hub.Announce(fmt.Sprintf("*** %s joined the chat ***", h.sess.username), h.sess.username)

	for h.state == stateActive && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		plain, err := h.srv.cipher.Decrypt(line)
		if err != nil {
			h.handleDecryptError(err)
			return
		}

		h.route(plain)
	}
}

// authenticate performs the AUTHENTICATING step: the first frame must be
// the encrypted desired username. On a duplicate username the connection
// receives an explicit rejection and is closed; there is no retry loop.
func (h *connHandler) authenticate(scanner *bufio.Scanner) bool {
	h.state = stateAuthenticating
	h.conn.SetReadDeadline(time.Now().Add(authTimeout))
	defer h.conn.SetReadDeadline(time.Time{})

	if !scanner.Scan() {
		h.srv.logger.Info("connection closed before authentication", "remote", h.conn.RemoteAddr())
		return false
	}

	plain, err := h.srv.cipher.Decrypt(strings.TrimSpace(scanner.Text()))
	if err != nil {
		h.handleDecryptError(err)
		return false
	}

	username := strings.TrimSpace(plain)
	if username == "" {
		h.writeDirect("Error: a non-empty username is required")
		return false
	}

	sess, err := h.srv.hub.Register(username)
	if err != nil {
		if errors.Is(err, chat.ErrDuplicateUsername) {
			h.writeDirect(fmt.Sprintf("Error: Username '%s' is already taken. Please reconnect with a different username.", username))
			h.srv.logger.Warn("rejected duplicate username", "username", username, "remote", h.conn.RemoteAddr())
		} else {
			h.srv.logger.Error("registration failed", "username", username, "error", err)
		}
		return false
	}

	h.sess = sess
	h.state = stateActive
	go h.writeLoop()
	return true
}

// route classifies one decrypted frame. File-transfer frames take priority
// while an upload is open so chat text inside a file cannot be misrouted.
func (h *connHandler) route(plain string) {
	switch {
	case strings.HasPrefix(plain, fileHeaderPrefix):
		h.beginUpload(strings.TrimPrefix(plain, fileHeaderPrefix))
	case plain == fileEndMarker:
		h.finishUpload()
	case h.upload != nil:
		h.uploadData(plain)
	case strings.HasPrefix(plain, "/"):
		if quit := h.srv.commands.Dispatch(h.sess.username, plain); quit {
			h.state = stateClosing
		}
	default:
		h.srv.logger.Info("message", "from", h.sess.username, "body", plain)
		h.srv.hub.Broadcast(chat.Message{
			Sender: h.sess.username,
			Body:   plain,
			At:     h.srv.clock.Now(),
		})
	}
}

// beginUpload opens an upload capture for the announced file. A private
// upload whose target has no active session is rejected immediately; the
// following data frames are discarded.
func (h *connHandler) beginUpload(payload string) {
	name, target := parseFileHeader(payload)
	capture := &uploadCapture{name: name, target: target}

	switch {
	case name == "":
		capture.discard = true
		h.srv.hub.SendTo(h.sess.username, "Error: upload is missing a filename")
	case target != "" && !h.srv.hub.IsActive(target):
		capture.discard = true
		h.srv.hub.SendTo(h.sess.username, fmt.Sprintf("Error: User '%s' not found or offline", target))
		h.srv.logger.Warn("upload for inactive user", "from", h.sess.username, "target", target)
	default:
		tmp, err := os.CreateTemp("", "cozychat-upload-*")
		if err != nil {
			capture.discard = true
			h.srv.logger.Error("creating upload spool", "from", h.sess.username, "file", name, "error", err)
			h.srv.hub.SendTo(h.sess.username, fmt.Sprintf("Error: could not store '%s'", name))
			break
		}
		capture.tmp = tmp
	}

	h.upload = capture
}

// uploadData decodes one base64 data frame into the open capture's spool
// file.
func (h *connHandler) uploadData(frame string) {
	if h.upload.discard {
		return
	}
	data, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		h.srv.logger.Warn("bad upload data frame", "from", h.sess.username, "file", h.upload.name, "error", err)
		h.failUpload(fmt.Sprintf("Error: upload of '%s' was corrupted", h.upload.name))
		return
	}
	if _, err := h.upload.tmp.Write(data); err != nil {
		h.srv.logger.Error("writing upload spool", "from", h.sess.username, "file", h.upload.name, "error", err)
		h.failUpload(fmt.Sprintf("Error: could not store '%s'", h.upload.name))
		return
	}
	h.upload.size += int64(len(data))
}

// failUpload switches the open capture to discard mode and tells the
// uploader why.
func (h *connHandler) failUpload(reply string) {
	h.upload.cleanup()
	h.upload.discard = true
	h.srv.hub.SendTo(h.sess.username, reply)
}

// finishUpload hands the spooled content to the store and announces it.
func (h *connHandler) finishUpload() {
	capture := h.upload
	h.upload = nil
	if capture == nil || capture.discard {
		return
	}
	defer capture.cleanup()

	if _, err := capture.tmp.Seek(0, io.SeekStart); err != nil {
		h.srv.logger.Error("rewinding upload spool", "from", h.sess.username, "file", capture.name, "error", err)
		h.srv.hub.SendTo(h.sess.username, fmt.Sprintf("Error: could not store '%s'", capture.name))
		return
	}

	rec, err := h.srv.store.Upload(h.sess.username, capture.target, capture.name, capture.tmp, capture.size)
	if err != nil {
		h.srv.logger.Error("storing upload", "from", h.sess.username, "file", capture.name, "error", err)
		h.srv.hub.SendTo(h.sess.username, fmt.Sprintf("Error: could not store '%s'", capture.name))
		return
	}

	h.srv.commands.announceUpload(h.sess.username, rec)
}

// handleDecryptError surfaces a wrong shared secret as a distinct diagnostic
// to this connection only, then lets the connection close. It is never
// treated as a malformed chat message.
func (h *connHandler) handleDecryptError(err error) {
	if errors.Is(err, chat.ErrWrongSecret) {
		h.writeDirect("Error: cannot decrypt your messages - your shared secret does not match the server's. Reconnect with the correct secret.")
		h.srv.logger.Warn("wrong shared secret", "remote", h.conn.RemoteAddr())
	} else {
		h.srv.logger.Warn("undecryptable frame", "remote", h.conn.RemoteAddr(), "error", err)
	}
	h.state = stateClosing
}

// writeLoop drains the session's outbound queue onto the socket. Each write
// is individually bounded; a failure drops the session so the hub stops
// queueing to it.
func (h *connHandler) writeLoop() {
	for {
		select {
		case line := <-h.sess.out:
			h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := h.conn.Write([]byte(line + "\n")); err != nil {
				h.srv.logger.Warn("write failed", "username", h.sess.username, "error", err)
				h.sess.drop()
				h.conn.Close()
				return
			}
		case <-h.sess.done:
			h.flushOutbound()
			h.conn.Close()
			return
		}
	}
}

// flushOutbound writes frames that were queued before the session was
// dropped, so a final announcement still reaches the peer.
func (h *connHandler) flushOutbound() {
	for {
		select {
		case line := <-h.sess.out:
			h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := h.conn.Write([]byte(line + "\n")); err != nil {
				return
			}
		default:
			return
		}
	}
}

// writeDirect encrypts and writes one frame synchronously, bypassing the
// session queue. Used before a session exists and for final diagnostics.
func (h *connHandler) writeDirect(text string) {
	ct, err := h.srv.cipher.Encrypt(text)
	if err != nil {
		h.srv.logger.Error("encrypting frame", "error", err)
		return
	}
	h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	h.conn.Write([]byte(ct + "\n"))
}

// close finishes the CLOSING -> CLOSED transition: the session is
// unregistered, the leave is announced, and the socket is closed.
func (h *connHandler) close() {
	h.state = stateClosing
	if h.upload != nil {
		h.upload.cleanup()
		h.upload = nil
	}
	if h.sess != nil {
		wasActive := h.srv.hub.IsActive(h.sess.username)
		h.srv.hub.Unregister(h.sess)
		if wasActive {
			h.srv.hub.Announce(fmt.Sprintf("*** %s left the chat ***", h.sess.username))
		}
		h.srv.logger.Info("client disconnected", "username", h.sess.username)
	}
	h.conn.Close()
	h.state = stateClosed
}
