package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"cozychat/internal/chat"
)

// Renderer turns decrypted server lines into colored terminal output.
// Usernames get their deterministic palette color, the client's own echoed
// messages use the self color, and announcements render as system lines.
type Renderer struct {
	self  string
	admin string

	selfStyle   lipgloss.Style
	systemStyle lipgloss.Style
}

func NewRenderer(self, admin string) *Renderer {
	return &Renderer{
		self:        self,
		admin:       admin,
		selfStyle:   lipgloss.NewStyle().Foreground(chat.SelfColor),
		systemStyle: lipgloss.NewStyle().Foreground(chat.SystemColor),
	}
}

// Render formats one server line with a local timestamp. Announcements and
// error replies are system lines; everything else is expected to be
// "sender: body".
func (r *Renderer) Render(line string, at time.Time) string {
	ts := at.Format("15:04:05")

	if isSystemLine(line) {
		return fmt.Sprintf("[%s] %s", ts, r.systemStyle.Render(line))
	}

	sender, body, ok := strings.Cut(line, ": ")
	if !ok {
		return fmt.Sprintf("[%s] %s", ts, line)
	}

	style := r.styleFor(sender)
	return fmt.Sprintf("[%s] %s: %s", ts, style.Render(sender), body)
}

func (r *Renderer) styleFor(sender string) lipgloss.Style {
	if sender == r.self {
		return r.selfStyle
	}
	return lipgloss.NewStyle().Foreground(chat.ColorFor(sender, r.admin))
}

// isSystemLine recognizes announcements and server error replies, which are
// rendered whole in the system color rather than as a chat message.
func isSystemLine(line string) bool {
	return strings.HasPrefix(line, "*** ") || strings.HasPrefix(line, "Error: ")
}
