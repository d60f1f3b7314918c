package supervisor

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"autofc2/internal/fc2log"
	"autofc2/internal/transport"
)

func TestApplyTransportConfigLoadsCookiesFileIntoSharedJar(t *testing.T) {
	dir := t.TempDir()
	cookiesPath := filepath.Join(dir, "cookies.txt")
	body := "live.fc2.com\tFALSE\t/\tTRUE\t0\tl_ortkn\tabc123\n"
	if err := os.WriteFile(cookiesPath, []byte(body), 0o644); err != nil {
		t.Fatalf("writing cookies file: %v", err)
	}

	tr, err := transport.New(transport.Options{})
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}

	s := &Supervisor{transport: tr, logger: fc2log.NewDefault("test", fc2log.LevelSilent)}
	cfg := &FileConfig{DefaultParams: paramsDoc{CookiesFile: strPtr(cookiesPath)}}

	s.applyTransportConfig(cfg)

	cookies := tr.Jar.Cookies(&url.URL{Scheme: "https", Host: "live.fc2.com"})
	found := false
	for _, c := range cookies {
		if c.Name == "l_ortkn" && c.Value == "abc123" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected l_ortkn cookie loaded into the shared jar, got %+v", cookies)
	}
	if s.loadedCookiesFile != cookiesPath {
		t.Errorf("expected loadedCookiesFile = %s, got %s", cookiesPath, s.loadedCookiesFile)
	}
}

func TestApplyTransportConfigSkipsReloadOnUnchangedPath(t *testing.T) {
	dir := t.TempDir()
	cookiesPath := filepath.Join(dir, "cookies.txt")
	if err := os.WriteFile(cookiesPath, []byte("live.fc2.com\tFALSE\t/\tTRUE\t0\tl_ortkn\tabc123\n"), 0o644); err != nil {
		t.Fatalf("writing cookies file: %v", err)
	}

	tr, err := transport.New(transport.Options{})
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}

	s := &Supervisor{transport: tr, logger: fc2log.NewDefault("test", fc2log.LevelSilent), loadedCookiesFile: cookiesPath}
	cfg := &FileConfig{DefaultParams: paramsDoc{CookiesFile: strPtr(cookiesPath)}}

	// The jar starts empty and the file is still readable, so a reload
	// would put l_ortkn into the jar; skipping it leaves the jar empty.
	s.applyTransportConfig(cfg)

	if got := tr.CookieValue("live.fc2.com", "l_ortkn"); got != "" {
		t.Errorf("expected cookies file not to be re-read for an unchanged path, but jar has l_ortkn=%q", got)
	}
	if s.loadedCookiesFile != cookiesPath {
		t.Errorf("expected loadedCookiesFile to remain %s, got %s", cookiesPath, s.loadedCookiesFile)
	}
}

func TestApplyTransportConfigAppliesTrustEnvProxy(t *testing.T) {
	tr, err := transport.New(transport.Options{})
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}

	s := &Supervisor{transport: tr, logger: fc2log.NewDefault("test", fc2log.LevelSilent)}
	trust := true
	cfg := &FileConfig{DefaultParams: paramsDoc{TrustEnvProxy: &trust}}

	// The HTTP transport's Proxy func is the observable effect of
	// SetTrustEnvProxy from outside package transport.
	s.applyTransportConfig(cfg)

	ht, ok := tr.HTTP.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", tr.HTTP.Transport)
	}
	if ht.Proxy == nil {
		t.Errorf("expected trust_env_proxy=true to set the HTTP transport's Proxy func")
	}
}
