package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"cozychat/internal/chat"
	"cozychat/internal/store"
)

// Server accepts encrypted chat connections and fans traffic out through
// its hub. One Server owns one listener, one hub and one file store.
type Server struct {
	name   string
	addr   string
	cipher chat.Cipher
	store  *store.FileStore
	logger chat.Logger
	clock  chat.Clock

	hub      *Hub
	commands *CommandProcessor

	listener net.Listener
	quit     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

func NewServer(name, addr string, cipher chat.Cipher, fileStore *store.FileStore, logger chat.Logger, clock chat.Clock) *Server {
	hub := NewHub(cipher, logger, clock)
	return &Server{
		name:     name,
		addr:     addr,
		cipher:   cipher,
		store:    fileStore,
		logger:   logger,
		clock:    clock,
		hub:      hub,
		commands: NewCommandProcessor(fileStore, hub, logger),
		quit:     make(chan struct{}),
	}
}

// Listen binds the configured address. It must be called before Serve.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger.Info("listening", "addr", ln.Addr().String(), "name", s.name)
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the accept loop until Shutdown closes the listener. Each
// connection gets its own handler goroutine; a failing connection never
// takes the server down.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				s.wg.Wait()
				return nil
			default:
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		s.logger.Info("connection accepted", "remote", conn.RemoteAddr())
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			newConnHandler(s, conn).run()
		}()
	}
}

// Shutdown announces the stop to every connected client, closes the
// listener and waits for in-flight handlers to finish.
func (s *Server) Shutdown() {
	s.once.Do(func() {
		s.logger.Info("shutting down", "name", s.name)
		s.hub.Announce("*** Server is shutting down ***")
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
		s.hub.Stop()
		s.wg.Wait()
	})
}

// Console runs the operator loop over r until EOF or /quit. Plain lines
// are broadcast under the server's own name; a small set of local commands
// inspects the room and the staging area without opening a client.
func (s *Server) Console(r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			s.hub.Broadcast(chat.Message{Sender: s.name, Body: line, At: s.clock.Now()})
			continue
		}

		cmd, args := splitCommand(line)
		switch cmd {
		case "/quit":
			return
		case "/who":
			sessions := s.hub.List()
			if len(sessions) == 0 {
				fmt.Fprintln(w, "no clients connected")
				continue
			}
			for _, info := range sessions {
				fmt.Fprintf(w, "%s (since %s)\n", info.Username, info.ConnectedAt.Format("15:04:05"))
			}
		case "/outbox":
			objects, err := s.store.Outbox()
			if err != nil {
				fmt.Fprintf(w, "error: %v\n", err)
				continue
			}
			if len(objects) == 0 {
				fmt.Fprintln(w, "outbox is empty")
				continue
			}
			for _, obj := range objects {
				fmt.Fprintf(w, "%s (%d bytes)\n", obj.Key, obj.Size)
			}
		case "/upload":
			s.consoleUpload(w, args)
		default:
			fmt.Fprintf(w, "unknown command %s (try /who, /outbox, /upload, /quit)\n", cmd)
		}
	}
}

// consoleUpload distributes a staged file under the server's own identity.
func (s *Server) consoleUpload(w io.Writer, args string) {
	name, target := parseUploadArgs(args)
	if name == "" {
		fmt.Fprintln(w, "usage: /upload <filename> [@username]")
		return
	}
	if target != "" && !s.hub.IsActive(target) {
		fmt.Fprintf(w, "user '%s' not found or offline\n", target)
		return
	}
	rec, err := s.store.UploadStaged(s.name, target, name)
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	s.commands.announceUpload(s.name, rec)
	fmt.Fprintf(w, "uploaded %s (%d bytes)\n", rec.Name, rec.Size)
}
