package client_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cozychat/internal/chat"
	"cozychat/internal/client"
	"cozychat/internal/encryption"
	"cozychat/internal/server"
	"cozychat/internal/testutil"
)

// syncBuffer is a goroutine-safe output sink for the client under test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// waitFor polls the buffer until substr appears or the deadline passes.
func waitFor(t *testing.T, buf *syncBuffer, substr string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), substr) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("output never contained %q; got:\n%s", substr, buf.String())
}

func startTestServer(t *testing.T) (*server.Server, chat.Cipher) {
	t.Helper()
	cipher := encryption.NewTestCipher("test-secret")
	srv := server.NewServer("Server", "127.0.0.1:0", cipher,
		testutil.NewTestFileStore(t), chat.NewNopLogger(), testutil.FixedClock())
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(srv.Shutdown)
	return srv, cipher
}

// runningClient bundles a connected Client with its input pipe and output
// buffer.
type runningClient struct {
	input  *io.PipeWriter
	output *syncBuffer
	done   chan error
}

func startClient(t *testing.T, srv *server.Server, cipher chat.Cipher, username, dataDir string) *runningClient {
	t.Helper()

	c := client.NewClient(srv.Addr().String(), username, "Server", cipher,
		dataDir, chat.NewNopLogger(), testutil.FixedClock())
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	pr, pw := io.Pipe()
	rc := &runningClient{input: pw, output: &syncBuffer{}, done: make(chan error, 1)}
	go func() {
		rc.done <- c.Run(pr, rc.output)
	}()
	t.Cleanup(func() { pw.Close() })
	return rc
}

func (rc *runningClient) typeLine(t *testing.T, line string) {
	t.Helper()
	if _, err := rc.input.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("writing input: %v", err)
	}
}

func (rc *runningClient) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-rc.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("client did not exit")
		return nil
	}
}

func TestClientChatEcho(t *testing.T) {
	t.Parallel()
	srv, cipher := startTestServer(t)

	alice := startClient(t, srv, cipher, "alice", t.TempDir())
	alice.typeLine(t, "sync")
	waitFor(t, alice.output, "alice: sync")
	bob := startClient(t, srv, cipher, "bob", t.TempDir())
	waitFor(t, alice.output, "*** bob joined the chat ***")

	alice.typeLine(t, "hello room")
	waitFor(t, alice.output, "alice: hello room")
	waitFor(t, bob.output, "alice: hello room")

	alice.typeLine(t, "/quit")
	if err := alice.wait(t); err != nil {
		t.Errorf("quit returned %v", err)
	}
	waitFor(t, bob.output, "*** alice left the chat ***")
}

func TestClientUploadDownloadRoundTrip(t *testing.T) {
	t.Parallel()
	srv, cipher := startTestServer(t)

	aliceDir := t.TempDir()
	bobDir := t.TempDir()
	alice := startClient(t, srv, cipher, "alice", aliceDir)
	alice.typeLine(t, "sync")
	waitFor(t, alice.output, "alice: sync")
	bob := startClient(t, srv, cipher, "bob", bobDir)
	waitFor(t, alice.output, "*** bob joined the chat ***")

	content := bytes.Repeat([]byte("round trip payload\n"), 100)
	if err := os.WriteFile(filepath.Join(aliceDir, "outbox", "notes.txt"), content, 0644); err != nil {
		t.Fatal(err)
	}

	alice.typeLine(t, "/upload notes.txt")
	waitFor(t, alice.output, "*** alice uploaded file: notes.txt ***")
	waitFor(t, bob.output, "*** alice uploaded file: notes.txt ***")

	bob.typeLine(t, "/download notes.txt")
	waitFor(t, bob.output, "Downloaded notes.txt to ")

	got, err := os.ReadFile(filepath.Join(bobDir, "inbox", "notes.txt"))
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("downloaded %d bytes, want %d identical bytes", len(got), len(content))
	}
}

func TestClientUploadMissingFile(t *testing.T) {
	t.Parallel()
	srv, cipher := startTestServer(t)

	alice := startClient(t, srv, cipher, "alice", t.TempDir())
	alice.typeLine(t, "/upload nope.txt")
	waitFor(t, alice.output, "not in your outbox")
}

func TestClientOutboxListsOwnFiles(t *testing.T) {
	t.Parallel()
	srv, cipher := startTestServer(t)

	aliceDir := t.TempDir()
	alice := startClient(t, srv, cipher, "alice", aliceDir)

	alice.typeLine(t, "/outbox")
	waitFor(t, alice.output, "Outbox is empty")

	if err := os.WriteFile(filepath.Join(aliceDir, "outbox", "draft.txt"), []byte("12345"), 0644); err != nil {
		t.Fatal(err)
	}

	alice.typeLine(t, "/outbox")
	waitFor(t, alice.output, "draft.txt (5 bytes)")
}

func TestClientUploadCommandWordOnly(t *testing.T) {
	t.Parallel()
	srv, cipher := startTestServer(t)

	alice := startClient(t, srv, cipher, "alice", t.TempDir())

	// A command that merely starts with the /upload word goes to the
	// server, which does not recognize it.
	alice.typeLine(t, "/uploadfoo notes.txt")
	waitFor(t, alice.output, "Unknown command /uploadfoo")
}

func TestClientWrongSecret(t *testing.T) {
	t.Parallel()
	srv, _ := startTestServer(t)

	wrong := encryption.NewTestCipher("other-secret")
	alice := startClient(t, srv, wrong, "alice", t.TempDir())

	err := alice.wait(t)
	if !errors.Is(err, chat.ErrWrongSecret) {
		t.Fatalf("expected ErrWrongSecret, got %v", err)
	}
	waitFor(t, alice.output, "shared secret mismatch")
}

func TestClientExitsOnServerShutdown(t *testing.T) {
	t.Parallel()
	srv, cipher := startTestServer(t)

	alice := startClient(t, srv, cipher, "alice", t.TempDir())
	alice.typeLine(t, "ping")
	waitFor(t, alice.output, "alice: ping")

	srv.Shutdown()
	waitFor(t, alice.output, "*** Server is shutting down ***")
	if err := alice.wait(t); err != nil {
		t.Errorf("shutdown exit returned %v", err)
	}
}
