package fnametemplate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandSubstitutesKnownTokens(t *testing.T) {
	f := Fields{ChannelID: "123", ChannelName: "alice", Title: "hello", Date: "2026-07-31", Ext: "mp4"}
	got := Expand("%(date)s %(title)s (%(channel_name)s).%(ext)s", f)
	want := "2026-07-31 hello (alice).mp4"
	if got != want {
		t.Errorf("Expand = %q, want %q", got, want)
	}
}

func TestExpandLeavesUnknownTokensEmpty(t *testing.T) {
	got := Expand("%(nonsense)s-ok", Fields{})
	if got != "-ok" {
		t.Errorf("Expand with unknown token = %q, want %q", got, "-ok")
	}
}

func TestSanitizeReplacesForbiddenCharacters(t *testing.T) {
	got := Sanitize(`a/b\c:d*e?f"g<h>i|j`)
	if got != "a_b_c_d_e_f_g_h_i_j" {
		t.Errorf("Sanitize = %q", got)
	}
}

func TestSanitizeTrimsWhitespaceAndDots(t *testing.T) {
	if got := Sanitize("  title...  "); got != "title" {
		t.Errorf("Sanitize = %q, want %q", got, "title")
	}
}

func TestSanitizeGuardsReservedDeviceNames(t *testing.T) {
	for _, name := range []string{"CON", "con", "NUL.txt", "COM1"} {
		if got := Sanitize(name); got == name {
			t.Errorf("Sanitize(%q) left the reserved name unprefixed", name)
		}
	}
}

func TestFormatOutputPrefixesLeadingDash(t *testing.T) {
	got := FormatOutput("-%(title)s", Fields{Title: "x"})
	if got != "_-x" {
		t.Errorf("FormatOutput = %q, want %q", got, "_-x")
	}
}

func TestResolveAvoidsCollisions(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "%(title)s.%(ext)s")
	f := Fields{Title: "rec"}

	first, err := Resolve(tmpl, f, "ts")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := os.WriteFile(first, []byte("x"), 0o644); err != nil {
		t.Fatalf("seeding collision file: %v", err)
	}

	second, err := Resolve(tmpl, f, "ts")
	if err != nil {
		t.Fatalf("Resolve after collision: %v", err)
	}
	if second == first {
		t.Fatalf("Resolve did not avoid the collision: both resolved to %s", first)
	}
	if filepath.Base(second) != "rec.1.ts" {
		t.Errorf("Resolve collision suffix = %s, want rec.1.ts", filepath.Base(second))
	}
}
