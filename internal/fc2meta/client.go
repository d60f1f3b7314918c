package fc2meta

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"sync"
	"time"

	"autofc2/internal/fc2err"
	"autofc2/internal/fc2log"
	"autofc2/internal/transport"
)

const (
	memberAPIURL        = "https://live.fc2.com/api/memberApi.php"
	controlServerAPIURL = "https://live.fc2.com/api/getControlServer.php"
	clientVersion       = "2.1.0\n+[1]"
)

// Client resolves broadcast status and the control-server URL for one
// channel, caching the first successful metadata fetch.
type Client struct {
	transport *transport.Client
	channelID string
	logger    fc2log.Logger

	mu   sync.Mutex
	meta *StreamMeta
}

// New constructs a metadata client bound to a single channel.
func New(t *transport.Client, channelID string, logger fc2log.Logger) *Client {
	return &Client{transport: t, channelID: channelID, logger: logger.With("live")}
}

// GetMeta fetches (or returns the cached) stream metadata. refetch forces
// a new request even if a cached value is present.
func (c *Client) GetMeta(ctx context.Context, refetch bool) (StreamMeta, error) {
	c.mu.Lock()
	if c.meta != nil && !refetch {
		cached := *c.meta
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	form := url.Values{
		"channel":  {"1"},
		"profile":  {"1"},
		"user":     {"1"},
		"streamid": {c.channelID},
	}

	const maxAttempts = 3
	backoff := newBackoffStrategy(500*time.Millisecond, 2*time.Second)

	var env metaEnvelope
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := backoff.sleep(ctx); err != nil {
				return StreamMeta{}, err
			}
			c.logger.Debugf("retrying get_meta (attempt %d/%d) after %v", attempt+1, maxAttempts, lastErr)
		}
		if lastErr = c.transport.PostFormJSON(ctx, memberAPIURL, form, &env); lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return StreamMeta{}, &fc2err.MetaFetchError{Err: lastErr}
	}

	env.Data.ChannelData.Title = html.UnescapeString(env.Data.ChannelData.Title)

	c.mu.Lock()
	meta := env.Data
	c.meta = &meta
	c.mu.Unlock()

	return env.Data, nil
}

// IsOnline reports whether the channel is currently broadcasting.
func (c *Client) IsOnline(ctx context.Context, refetch bool) (bool, error) {
	meta, err := c.GetMeta(ctx, refetch)
	if err != nil {
		return false, err
	}
	return meta.IsBroadcasting(), nil
}

// WaitForOnline polls IsOnline(refetch=true) until it reports true,
// sleeping intervalSeconds between probes and emitting an inline status
// line once per second, matching FC2LiveStream.wait_for_online.
func (c *Client) WaitForOnline(ctx context.Context, intervalSeconds int) error {
	if intervalSeconds <= 0 {
		intervalSeconds = 1
	}
	for {
		online, err := c.IsOnline(ctx, true)
		if err != nil {
			c.logger.Debugf("wait_for_online: probe failed: %v", err)
		}
		if online {
			return nil
		}

		ticker := time.NewTicker(time.Second)
		for i := 0; i < intervalSeconds; i++ {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return ctx.Err()
			case <-ticker.C:
				c.logger.Progress("Waiting for stream")
			}
		}
		ticker.Stop()
	}
}

// GetWebsocketURL resolves the control-server WebSocket URL, including
// its control_token query parameter. The channel must already be online.
func (c *Client) GetWebsocketURL(ctx context.Context) (string, error) {
	meta, err := c.GetMeta(ctx, false)
	if err != nil {
		return "", err
	}
	online, err := c.IsOnline(ctx, false)
	if err != nil {
		return "", err
	}
	if !online {
		return "", &fc2err.NotOnline{ChannelID: c.channelID}
	}

	orz := c.transport.CookieValue("live.fc2.com", "l_ortkn")

	form := url.Values{
		"channel_id":      {c.channelID},
		"mode":            {"play"},
		"orz":             {orz},
		"channel_version": {meta.ChannelData.Version},
		"client_version":  {clientVersion},
		"client_type":     {"pc"},
		"client_app":      {"browser_hls"},
		"ipv6":            {""},
	}

	var resp controlServerResponse
	if err := c.transport.PostFormJSON(ctx, controlServerAPIURL, form, &resp); err != nil {
		return "", &fc2err.TransportError{Op: "getControlServer", Err: err}
	}

	fc2ID, err := decodeControlTokenFC2ID(resp.ControlToken)
	if err != nil {
		c.logger.Debugf("failed to decode control_token: %v", err)
	} else if fc2ID != "" {
		c.logger.Debugf("logged in with ID %s", fc2ID)
	} else {
		c.logger.Debug("using anonymous account")
	}

	return resp.URL + "?control_token=" + resp.ControlToken, nil
}

// decodeControlTokenFC2ID base64-decodes the JWT's middle segment to pull
// out fc2_id, without verifying the token's signature — the recorder is
// a client of the handshake, not a verifier of it.
func decodeControlTokenFC2ID(jwt string) (string, error) {
	parts := splitJWT(jwt)
	if len(parts) != 3 {
		return "", fmt.Errorf("fc2meta: control_token is not a 3-part JWT")
	}

	body := parts[1]
	if m := len(body) % 4; m != 0 {
		body += string([]byte{'=', '=', '='}[:4-m])
	}

	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(body); err != nil {
			return "", fmt.Errorf("fc2meta: decoding control_token body: %w", err)
		}
	}

	var tok controlToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("fc2meta: parsing control_token body: %w", err)
	}
	return tok.FC2ID, nil
}

func splitJWT(s string) []string {
	var parts []string
	start := 0
	for i, r := range s {
		if r == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
