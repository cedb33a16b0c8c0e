package chat

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"
)

// palette holds the colors assigned to regular users: bright cyan, yellow,
// green, blue and white. The admin and self colors are reserved and never
// appear in the rotation.
var palette = []lipgloss.Color{
	lipgloss.Color("14"), // cyan
	lipgloss.Color("11"), // yellow
	lipgloss.Color("10"), // green
	lipgloss.Color("12"), // blue
	lipgloss.Color("15"), // white
}

var (
	// AdminColor is the fixed sentinel color for the server identity.
	AdminColor = lipgloss.Color("13") // magenta

	// SelfColor is applied by a client to its own echoed messages,
	// regardless of the palette color its username hashes to.
	SelfColor = lipgloss.Color("4") // blue

	// SystemColor is used for announcements and system messages.
	SystemColor = lipgloss.Color("3") // yellow
)

// ColorFor maps a username to its display color. The mapping is a pure
// function of the username, so a user keeps the same color across
// reconnects. The admin identity bypasses the hash and always resolves to
// AdminColor.
func ColorFor(username, admin string) lipgloss.Color {
	if username == admin {
		return AdminColor
	}
	h := fnv.New32a()
	h.Write([]byte(username))
	return palette[h.Sum32()%uint32(len(palette))]
}
