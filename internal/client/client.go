package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cozychat/internal/chat"
)

const localHelp = `Local commands:
  /upload <file> [@user]  send a file from your outbox directory
  /outbox                 list the files in your outbox directory
  /quit                   disconnect
Everything else, /help included, is sent to the server.`

// Client connects to a chat server, authenticates with an encrypted
// username frame and then relays traffic between the terminal and the
// socket. Incoming files are saved under the client's inbox directory;
// /upload streams files from its outbox directory.
type Client struct {
	addr     string
	username string
	cipher   chat.Cipher
	dataDir  string
	logger   chat.Logger
	clock    chat.Clock

	conn     net.Conn
	renderer *Renderer

	outMu sync.Mutex // serializes printing from the reader and prompt loops
}

// NewClient creates a Client. serverName is the identity the server's
// operator console broadcasts under; it determines which sender renders in
// the admin color.
func NewClient(addr, username, serverName string, cipher chat.Cipher, dataDir string, logger chat.Logger, clock chat.Clock) *Client {
	return &Client{
		addr:     addr,
		username: username,
		cipher:   cipher,
		dataDir:  dataDir,
		logger:   logger,
		clock:    clock,
		renderer: NewRenderer(username, serverName),
	}
}

// Connect dials the server, prepares the local inbox and outbox directories
// and sends the encrypted username frame.
func (c *Client) Connect() error {
	for _, dir := range []string{c.inboxDir(), c.outboxDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	c.conn = conn

	if err := c.send(c.username); err != nil {
		conn.Close()
		return err
	}
	c.logger.Info("connected", "addr", c.addr, "username", c.username)
	return nil
}

// Run relays between input and the server until the user quits, the server
// shuts down, or the connection drops. Connect must have succeeded first.
func (c *Client) Run(input io.Reader, output io.Writer) error {
	readerDone := make(chan error, 1)
	go func() {
		readerDone <- c.readLoop(output)
	}()

	scanner := bufio.NewScanner(input)
	for {
		lineCh := make(chan string, 1)
		go func() {
			if scanner.Scan() {
				lineCh <- scanner.Text()
			} else {
				close(lineCh)
			}
		}()

		select {
		case err := <-readerDone:
			c.conn.Close()
			return err
		case line, ok := <-lineCh:
			if !ok {
				// stdin closed: disconnect cleanly.
				c.send("/quit")
				c.conn.Close()
				<-readerDone
				return nil
			}
			if quit, err := c.handleInput(strings.TrimSpace(line), output); quit {
				c.conn.Close()
				<-readerDone
				return err
			}
		}
	}
}

// handleInput processes one line typed by the user. A few commands are
// handled locally; /upload reads from and /outbox lists the client's own
// outbox directory. Everything else goes to the server. It reports whether
// the client should disconnect.
func (c *Client) handleInput(line string, output io.Writer) (quit bool, err error) {
	if line == "" {
		return false, nil
	}

	cmd, args := splitWord(line)
	switch cmd {
	case "/quit":
		c.send("/quit")
		return true, nil
	case "/upload":
		if uploadErr := c.uploadFromOutbox(args); uploadErr != nil {
			c.printf(output, "upload failed: %v\n", uploadErr)
		}
		return false, nil
	case "/outbox":
		c.listOutbox(output)
		return false, nil
	case "/local":
		c.printf(output, "%s\n", localHelp)
		return false, nil
	default:
		if sendErr := c.send(line); sendErr != nil {
			return true, fmt.Errorf("%w: %v", chat.ErrConnectionLost, sendErr)
		}
		return false, nil
	}
}

// readLoop receives, decrypts and renders server frames. It returns nil on
// a clean shutdown or quit, ErrWrongSecret when the secrets do not match,
// and ErrConnectionLost when the server goes away unexpectedly.
func (c *Client) readLoop(output io.Writer) error {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)

	var download *downloadState
	for scanner.Scan() {
		frame := strings.TrimSpace(scanner.Text())
		if frame == "" {
			continue
		}

		plain, err := c.cipher.Decrypt(frame)
		if err != nil {
			if errors.Is(err, chat.ErrWrongSecret) {
				c.printf(output, "cannot decrypt server messages: shared secret mismatch\n")
				return fmt.Errorf("reading from server: %w", chat.ErrWrongSecret)
			}
			c.logger.Warn("dropping undecryptable frame", "error", err)
			continue
		}

		if download != nil {
			done, err := c.downloadFrame(download, plain, output)
			if err != nil {
				c.printf(output, "download failed: %v\n", err)
				download.abort()
				download = nil
				continue
			}
			if done {
				download = nil
			}
			continue
		}

		if name, ok := strings.CutPrefix(plain, "__FILE__:"); ok {
			d, err := c.beginDownload(name)
			if err != nil {
				c.printf(output, "download failed: %v\n", err)
				continue
			}
			download = d
			continue
		}

		c.printf(output, "%s\n", c.renderer.Render(plain, c.clock.Now()))

		if plain == "*** Server is shutting down ***" {
			return nil
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", chat.ErrConnectionLost, err)
	}
	return nil
}

func (c *Client) send(plaintext string) error {
	ct, err := c.cipher.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting frame: %w", err)
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := c.conn.Write([]byte(ct + "\n")); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

func (c *Client) printf(w io.Writer, format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(w, format, args...)
}

func (c *Client) inboxDir() string  { return filepath.Join(c.dataDir, "inbox") }
func (c *Client) outboxDir() string { return filepath.Join(c.dataDir, "outbox") }

// splitWord separates the first word of line from the rest.
func splitWord(line string) (word, rest string) {
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i], strings.TrimSpace(line[i+1:])
	}
	return line, ""
}
