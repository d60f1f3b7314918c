// Package transport provides the shared HTTP/WS client used by every
// channel recording session: a single cookie jar, optional proxy-from-
// environment, form POST with JSON decoding (accepting FC2's
// text/javascript mislabeling), streamed GET, and WebSocket dialing.
//
// Grounded on the teacher's utils/http.go (custom-User-Agent request
// builder) generalized into a reusable client type, and on
// fc2_live_dl/fc2.py's session usage (form POST, text/javascript body).
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Client is the shared transport for one recorder process: one cookie
// jar, one underlying *http.Client, reused across every channel.
type Client struct {
	HTTP      *http.Client
	Jar       http.CookieJar
	UserAgent string
	dialer    *websocket.Dialer
}

// Options configures New.
type Options struct {
	TrustEnvProxy bool
	UserAgent     string
	Timeout       time.Duration
}

// New builds a Client with a fresh in-memory cookie jar.
func New(opts Options) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("transport: creating cookie jar: %w", err)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	transport := &http.Transport{}
	if opts.TrustEnvProxy {
		transport.Proxy = http.ProxyFromEnvironment
	}

	hc := &http.Client{
		Jar:       jar,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			req.Header.Set("User-Agent", ua)
			return nil
		},
	}
	if opts.Timeout > 0 {
		hc.Timeout = opts.Timeout
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 15 * time.Second,
		Jar:              jar,
	}
	if !opts.TrustEnvProxy {
		dialer.Proxy = nil
	}

	return &Client{HTTP: hc, Jar: jar, UserAgent: ua, dialer: dialer}, nil
}

// SetTrustEnvProxy toggles whether the shared HTTP and WebSocket
// dialers honor HTTP_PROXY/HTTPS_PROXY/NO_PROXY from the environment,
// applied after construction so a hot-reloaded config's
// trust_env_proxy can take effect without rebuilding the client (and
// its cookie jar) from scratch.
func (c *Client) SetTrustEnvProxy(trust bool) {
	proxyFunc := (func(*http.Request) (*url.URL, error))(nil)
	if trust {
		proxyFunc = http.ProxyFromEnvironment
	}
	if t, ok := c.HTTP.Transport.(*http.Transport); ok {
		t.Proxy = proxyFunc
	}
	c.dialer.Proxy = proxyFunc
}

// PostFormJSON posts url-encoded form values and decodes the response body
// as JSON into out, regardless of the advertised content type: FC2 labels
// its API responses text/javascript instead of application/json.
func (c *Client) PostFormJSON(ctx context.Context, rawURL string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("transport: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("transport: posting %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("transport: decoding response from %s: %w", rawURL, err)
	}
	return nil
}

// Get issues a GET request and returns the raw response, letting the
// caller stream or inspect the status code (used for both the media
// playlist poller and fragment fetches, where non-2xx status carries
// meaning).
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: building request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	return c.HTTP.Do(req)
}

// GetBody is a convenience wrapper around Get that returns the response
// body alongside the response, used for small fetches like thumbnails
// that the caller copies out itself. The body is not read here; the
// caller must close it.
func (c *Client) GetBody(ctx context.Context, rawURL string) (io.ReadCloser, *http.Response, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	return resp.Body, resp, nil
}

// DialWebSocket connects to a wss:// control server URL, returning the
// duplex message connection the control session reads/writes through.
func (c *Client) DialWebSocket(ctx context.Context, rawURL string) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("User-Agent", c.UserAgent)
	conn, _, err := c.dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		return nil, fmt.Errorf("transport: dialing websocket %s: %w", rawURL, err)
	}
	return conn, nil
}

// CookieValue returns the value of a named cookie set on the FC2 host, or
// "" if absent — used to extract l_ortkn for the control-server handshake.
func (c *Client) CookieValue(host string, name string) string {
	u := &url.URL{Scheme: "https", Host: host}
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}
