package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"cozychat/internal/chat"
	"cozychat/internal/store"
)

const helpText = `Available commands:
  /list                   list files you can see
  /inbox                  private files addressed to you
  /outbox                 staged uploads awaiting distribution
  /upload <file>          share a staged file with everyone
  /upload <file> @user    share a staged file privately with @user
  /download <file>        fetch a file you are allowed to read
  /help                   show this help
  /quit                   disconnect
Anything not starting with / is sent to the room.`

// CommandProcessor parses /-prefixed input and dispatches it to the file
// store or replies with usage text. Replies go only to the requester.
type CommandProcessor struct {
	store  *store.FileStore
	hub    *Hub
	logger chat.Logger
}

// NewCommandProcessor creates a CommandProcessor.
func NewCommandProcessor(fileStore *store.FileStore, hub *Hub, logger chat.Logger) *CommandProcessor {
	return &CommandProcessor{store: fileStore, hub: hub, logger: logger}
}

// Dispatch handles one command line from requester. It reports whether the
// requester asked to quit.
func (p *CommandProcessor) Dispatch(requester, line string) (quit bool) {
	cmd, args := splitCommand(line)

	switch cmd {
	case "/quit":
		return true
	case "/help":
		p.hub.SendTo(requester, helpText)
	case "/list":
		p.list(requester)
	case "/inbox":
		p.inbox(requester)
	case "/outbox":
		p.outbox(requester)
	case "/upload":
		p.upload(requester, args)
	case "/download":
		p.download(requester, args)
	default:
		p.hub.SendTo(requester, fmt.Sprintf("Unknown command %s. Type /help for help.", cmd))
	}
	return false
}

func (p *CommandProcessor) list(requester string) {
	recs, err := p.store.List(requester)
	if err != nil {
		p.logger.Error("listing files", "requester", requester, "error", err)
		p.hub.SendTo(requester, "Error: could not list files")
		return
	}
	if len(recs) == 0 {
		p.hub.SendTo(requester, "No files shared yet")
		return
	}

	var b strings.Builder
	b.WriteString("Shared files:")
	for _, rec := range recs {
		fmt.Fprintf(&b, "\n  %s (%d bytes)", describeRecord(rec, requester), rec.Size)
	}
	p.hub.SendTo(requester, b.String())
}

func (p *CommandProcessor) inbox(requester string) {
	recs, err := p.store.Inbox(requester)
	if err != nil {
		p.logger.Error("listing inbox", "requester", requester, "error", err)
		p.hub.SendTo(requester, "Error: could not list inbox")
		return
	}
	if len(recs) == 0 {
		p.hub.SendTo(requester, "Inbox is empty")
		return
	}

	var b strings.Builder
	b.WriteString("Inbox:")
	for _, rec := range recs {
		fmt.Fprintf(&b, "\n  %s (from %s, %d bytes)", rec.Name, rec.Owner, rec.Size)
	}
	p.hub.SendTo(requester, b.String())
}

func (p *CommandProcessor) outbox(requester string) {
	objects, err := p.store.Outbox()
	if err != nil {
		p.logger.Error("listing outbox", "requester", requester, "error", err)
		p.hub.SendTo(requester, "Error: could not list outbox")
		return
	}
	if len(objects) == 0 {
		p.hub.SendTo(requester, "Outbox is empty")
		return
	}

	var b strings.Builder
	b.WriteString("Outbox:")
	for _, obj := range objects {
		name := strings.TrimPrefix(obj.Key, "outbox/")
		fmt.Fprintf(&b, "\n  %s (%d bytes)", name, obj.Size)
	}
	p.hub.SendTo(requester, b.String())
}

// upload distributes a staged file from the outbox area. A trailing @user
// argument makes the file private to that user.
func (p *CommandProcessor) upload(requester, args string) {
	name, target := parseUploadArgs(args)
	if name == "" {
		p.hub.SendTo(requester, "Usage: /upload <file> [@user]")
		return
	}
	if target != "" && !p.hub.IsActive(target) {
		p.hub.SendTo(requester, fmt.Sprintf("Error: User '%s' not found or offline", target))
		return
	}

	rec, err := p.store.UploadStaged(requester, target, name)
	if err != nil {
		if errors.Is(err, chat.ErrFileNotFound) {
			p.hub.SendTo(requester, fmt.Sprintf("Error: File '%s' not found in outbox", name))
		} else {
			p.logger.Error("staged upload", "requester", requester, "name", name, "error", err)
			p.hub.SendTo(requester, fmt.Sprintf("Error: could not upload '%s'", name))
		}
		return
	}

	p.announceUpload(requester, rec)
}

// announceUpload notifies the room of a public upload, or just the two
// parties of a private one.
func (p *CommandProcessor) announceUpload(uploader string, rec *chat.FileRecord) {
	if rec.Public() {
		p.hub.Announce(fmt.Sprintf("*** %s uploaded file: %s ***", uploader, rec.Name))
		return
	}
	p.hub.SendTo(uploader, fmt.Sprintf("File %s uploaded privately for %s", rec.Name, rec.Recipient))
	p.hub.SendTo(rec.Recipient, fmt.Sprintf("*** %s sent you a private file: %s ***", uploader, rec.Name))
}

// download streams the file back to the requester as a header frame, base64
// data frames and an end marker. Failures are reported to the requester
// only, with not-found and permission failures kept distinct.
func (p *CommandProcessor) download(requester, args string) {
	name := strings.TrimSpace(args)
	if name == "" {
		p.hub.SendTo(requester, "Usage: /download <file>")
		return
	}

	var buf strings.Builder
	b64 := base64.NewEncoder(base64.StdEncoding, &buf)
	if _, err := p.store.Download(requester, name, b64); err != nil {
		switch {
		case errors.Is(err, chat.ErrFileNotFound):
			p.hub.SendTo(requester, fmt.Sprintf("Error: File '%s' not found", name))
		case errors.Is(err, chat.ErrPermissionDenied):
			p.hub.SendTo(requester, fmt.Sprintf("Error: Cannot download '%s': permission denied", name))
		default:
			p.logger.Error("download", "requester", requester, "name", name, "error", err)
			p.hub.SendTo(requester, fmt.Sprintf("Error: could not download '%s'", name))
		}
		return
	}
	b64.Close()

	p.hub.SendTo(requester, fileHeaderPrefix+name)
	encoded := buf.String()
	chunk := base64.StdEncoding.EncodedLen(dataChunkSize)
	for start := 0; start < len(encoded); start += chunk {
		end := start + chunk
		if end > len(encoded) {
			end = len(encoded)
		}
		p.hub.SendTo(requester, encoded[start:end])
	}
	p.hub.SendTo(requester, fileEndMarker)
}

// describeRecord renders one listing entry from viewer's perspective.
func describeRecord(rec chat.FileRecord, viewer string) string {
	switch {
	case rec.Public():
		return fmt.Sprintf("%s (public, uploaded by %s)", rec.Name, rec.Owner)
	case viewer == rec.Owner:
		return fmt.Sprintf("%s (private, for %s)", rec.Name, rec.Recipient)
	case viewer == rec.Recipient:
		return fmt.Sprintf("%s (private, from %s)", rec.Name, rec.Owner)
	default:
		return fmt.Sprintf("%s (private)", rec.Name)
	}
}

// splitCommand separates the command word from its arguments.
func splitCommand(line string) (cmd, args string) {
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i], strings.TrimSpace(line[i+1:])
	}
	return line, ""
}

// parseUploadArgs splits "/upload" arguments into filename and optional
// @user target.
func parseUploadArgs(args string) (name, target string) {
	args = strings.TrimSpace(args)
	if args == "" {
		return "", ""
	}
	if i := strings.LastIndex(args, " @"); i >= 0 {
		return strings.TrimSpace(args[:i]), strings.TrimSpace(args[i+2:])
	}
	return args, ""
}
