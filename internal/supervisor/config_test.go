package supervisor

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "autofc2.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestChannelParamsAppliesDefaultsThenOverride(t *testing.T) {
	cfg := &FileConfig{
		DefaultParams: paramsDoc{Remux: boolPtr(false)},
		Channels: map[string]paramsDoc{
			"123": {Quality: strPtr("1.2Mbps")},
		},
	}

	p := cfg.ChannelParams("123")
	if p.Remux {
		t.Errorf("expected default_params.remux=false to apply, got Remux=true")
	}
	if p.Quality != "1.2Mbps" {
		t.Errorf("expected channel override quality=1.2Mbps, got %s", p.Quality)
	}
	if p.Latency != "mid" {
		t.Errorf("expected unoverridden field to keep its default, got latency=%s", p.Latency)
	}
}

func TestChannelParamsWithoutOverrideUsesDefaults(t *testing.T) {
	cfg := &FileConfig{}
	p := cfg.ChannelParams("999")
	if p.Quality != "3Mbps" || p.Threads != 1 {
		t.Errorf("expected DefaultParams() untouched, got %+v", p)
	}
}

func TestConfigLoaderRetainsLastGoodOnTransientFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"channels":{"1":{}}}`)
	loader := NewConfigLoader(path)

	first, err := loader.Load()
	if err != nil {
		t.Fatalf("initial load: %v", err)
	}
	if _, ok := first.Channels["1"]; !ok {
		t.Fatalf("expected channel 1 in initial config")
	}

	if err := os.WriteFile(path, []byte(`{not valid json`), 0o644); err != nil {
		t.Fatalf("corrupting config: %v", err)
	}

	second, err := loader.Load()
	if err != nil {
		t.Fatalf("expected transient parse failure to be tolerated, got error: %v", err)
	}
	if _, ok := second.Channels["1"]; !ok {
		t.Fatalf("expected last-good config to be retained after a bad reload")
	}
}

func TestConfigLoaderFailsOnFirstLoad(t *testing.T) {
	loader := NewConfigLoader(filepath.Join(t.TempDir(), "missing.json"))
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected an error when the first load can't read the file")
	}
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }
