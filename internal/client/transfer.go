package client

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// maxFrameBytes bounds a single received line.
	maxFrameBytes = 1024 * 1024

	// uploadChunkSize is the raw byte count encoded into one data frame.
	uploadChunkSize = 512
)

// uploadFromOutbox streams a file from the local outbox directory to the
// server as a header frame, base64 data frames and an end marker. args is
// "<file> [@user]".
func (c *Client) uploadFromOutbox(args string) error {
	name, target := parseTarget(args)
	if name == "" {
		return fmt.Errorf("usage: /upload <file> [@user]")
	}
	if strings.ContainsAny(name, `/\@`) {
		return fmt.Errorf("filename must not contain path separators or '@'")
	}

	f, err := os.Open(filepath.Join(c.outboxDir(), name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("'%s' is not in your outbox (%s)", name, c.outboxDir())
		}
		return fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	header := "__FILE__:" + name
	if target != "" {
		header += "@" + target
	}
	if err := c.send(header); err != nil {
		return err
	}

	buf := make([]byte, uploadChunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if err := c.send(base64.StdEncoding.EncodeToString(buf[:n])); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("reading %s: %w", name, readErr)
		}
	}

	if err := c.send("__END__"); err != nil {
		return err
	}
	c.logger.Info("upload sent", "file", name, "target", target)
	return nil
}

// listOutbox prints the files waiting in the client's own outbox directory,
// the ones /upload can send.
func (c *Client) listOutbox(output io.Writer) {
	entries, err := os.ReadDir(c.outboxDir())
	if err != nil {
		c.printf(output, "cannot read outbox %s: %v\n", c.outboxDir(), err)
		return
	}

	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n  %s (%d bytes)", e.Name(), info.Size())
	}

	if b.Len() == 0 {
		c.printf(output, "Outbox is empty (%s)\n", c.outboxDir())
		return
	}
	c.printf(output, "Outbox (%s):%s\n", c.outboxDir(), b.String())
}

// downloadState tracks one incoming file. Data is written to a temporary
// file and renamed into the inbox only after the end marker, so a dropped
// connection never leaves a truncated file behind.
type downloadState struct {
	name string
	tmp  *os.File
	dest string
}

func (c *Client) beginDownload(name string) (*downloadState, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." {
		return nil, fmt.Errorf("server sent an invalid filename")
	}

	tmp, err := os.CreateTemp(c.inboxDir(), ".download-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}
	return &downloadState{
		name: name,
		tmp:  tmp,
		dest: filepath.Join(c.inboxDir(), name),
	}, nil
}

// downloadFrame consumes one frame of an in-flight download. It reports
// true once the end marker has been handled.
func (c *Client) downloadFrame(d *downloadState, plain string, output io.Writer) (done bool, err error) {
	if plain != "__END__" {
		data, err := base64.StdEncoding.DecodeString(plain)
		if err != nil {
			return false, fmt.Errorf("corrupt data frame for %s: %w", d.name, err)
		}
		if _, err := d.tmp.Write(data); err != nil {
			return false, fmt.Errorf("writing %s: %w", d.name, err)
		}
		return false, nil
	}

	if err := d.tmp.Close(); err != nil {
		return false, fmt.Errorf("closing %s: %w", d.name, err)
	}
	if err := os.Rename(d.tmp.Name(), d.dest); err != nil {
		os.Remove(d.tmp.Name())
		return false, fmt.Errorf("saving %s: %w", d.name, err)
	}
	c.printf(output, "Downloaded %s to %s\n", d.name, d.dest)
	c.logger.Info("download saved", "file", d.name, "path", d.dest)
	return true, nil
}

func (d *downloadState) abort() {
	d.tmp.Close()
	os.Remove(d.tmp.Name())
}

// parseTarget splits "<file> [@user]" on the last " @".
func parseTarget(args string) (name, target string) {
	args = strings.TrimSpace(args)
	if args == "" {
		return "", ""
	}
	if i := strings.LastIndex(args, " @"); i >= 0 {
		return strings.TrimSpace(args[:i]), strings.TrimSpace(args[i+2:])
	}
	return args, ""
}
