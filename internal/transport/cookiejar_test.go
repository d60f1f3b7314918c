package transport

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCookiesFileAppliesToSubdomainOfDottedDomain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	body := ".fc2.com\tTRUE\t/\tTRUE\t0\tsid\tsecret\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing cookies file: %v", err)
	}

	c, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.LoadCookiesFile(path); err != nil {
		t.Fatalf("LoadCookiesFile: %v", err)
	}

	cookies := c.Jar.Cookies(&url.URL{Scheme: "https", Host: "live.fc2.com"})
	found := false
	for _, ck := range cookies {
		if ck.Name == "sid" && ck.Value == "secret" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a .fc2.com cookie line to match subdomain live.fc2.com, got %+v", cookies)
	}
}

func TestLoadCookiesFileStripsHttpOnlyPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	body := "#HttpOnly_live.fc2.com\tFALSE\t/\tTRUE\t0\tl_ortkn\tabc123\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing cookies file: %v", err)
	}

	c, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.LoadCookiesFile(path); err != nil {
		t.Fatalf("LoadCookiesFile: %v", err)
	}

	if got := c.CookieValue("live.fc2.com", "l_ortkn"); got != "abc123" {
		t.Errorf("CookieValue(l_ortkn) = %q, want abc123", got)
	}
}

func TestSetTrustEnvProxyTogglesProxyFuncs(t *testing.T) {
	c, err := New(Options{TrustEnvProxy: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.SetTrustEnvProxy(true)
	if c.dialer.Proxy == nil {
		t.Errorf("expected dialer.Proxy to be set after SetTrustEnvProxy(true)")
	}

	c.SetTrustEnvProxy(false)
	if c.dialer.Proxy != nil {
		t.Errorf("expected dialer.Proxy to be cleared after SetTrustEnvProxy(false)")
	}
}
