package remux

import "testing"

func TestParseStatusBasicLine(t *testing.T) {
	line := "frame= 1234 fps= 30 q=-1.0 size=   10240kB time=00:00:41.10 bitrate=2000.0kbits/s speed=1.0x"
	got := ParseStatus(line)

	want := map[string]string{
		"frame":   "1234",
		"fps":     "30",
		"q":       "-1.0",
		"size":    "10240kB",
		"time":    "00:00:41.10",
		"bitrate": "2000.0kbits/s",
		"speed":   "1.0x",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("ParseStatus[%s] = %q, want %q", k, got[k], v)
		}
	}
}

func TestParseStatusDanglingKeyJoinsNextToken(t *testing.T) {
	// ffmpeg sometimes separates a value from its "key=" with whitespace;
	// the dangling "size=" must absorb whatever token follows it.
	got := ParseStatus("size= 20480kB time=00:00:10.00")
	if got["size"] != "20480kB" {
		t.Errorf("size = %q, want %q", got["size"], "20480kB")
	}
	if got["time"] != "00:00:10.00" {
		t.Errorf("time = %q, want %q", got["time"], "00:00:10.00")
	}
}

func TestParseStatusDefaultsWhenFieldAbsent(t *testing.T) {
	got := ParseStatus("")
	if got["bitrate"] != "N/A" || got["speed"] != "N/A" {
		t.Errorf("missing-field defaults not applied: %+v", got)
	}
}
