package chat

import "testing"

func TestColorFor_Deterministic(t *testing.T) {
	t.Parallel()

	users := []string{"Alice", "Bob", "Carol", "dave", "Ünïcode"}
	for _, u := range users {
		first := ColorFor(u, "Server")
		for i := 0; i < 5; i++ {
			if got := ColorFor(u, "Server"); got != first {
				t.Fatalf("ColorFor(%q) changed between calls: %v != %v", u, got, first)
			}
		}
	}
}

func TestColorFor_CaseSensitive(t *testing.T) {
	t.Parallel()

	// alice and Alice are distinct identities; they may or may not collide
	// in the palette, but the admin check must be exact.
	if got := ColorFor("server", "Server"); got == AdminColor {
		t.Errorf("ColorFor(\"server\") = AdminColor, want palette color for non-admin")
	}
}

func TestColorFor_Admin(t *testing.T) {
	t.Parallel()

	if got := ColorFor("Server", "Server"); got != AdminColor {
		t.Errorf("ColorFor(admin) = %v, want %v", got, AdminColor)
	}
}

func TestColorFor_InPalette(t *testing.T) {
	t.Parallel()

	for _, u := range []string{"Alice", "Bob", "x", ""} {
		got := ColorFor(u, "Server")
		found := false
		for _, c := range palette {
			if got == c {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("ColorFor(%q) = %v, not in palette", u, got)
		}
	}
}
