package transport

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// LoadCookiesFile parses a Netscape-format cookies file (tab-delimited:
// domain, flag, path, secure, expiration, name, value) and installs each
// cookie into the client's jar. A domain beginning with "#HttpOnly_" has
// that prefix stripped and the cookie's HttpOnly flag set, matching the
// original's FC2LiveDL._parse_cookies_file.
func (c *Client) LoadCookiesFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("transport: opening cookies file: %w", err)
	}
	defer f.Close()

	byHost := map[string][]*http.Cookie{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "# ") {
			continue
		}
		cookie, host, ok := parseCookieLine(line)
		if !ok {
			continue
		}
		byHost[host] = append(byHost[host], cookie)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("transport: reading cookies file: %w", err)
	}

	for host, cookies := range byHost {
		c.Jar.SetCookies(&url.URL{Scheme: "https", Host: host}, cookies)
	}
	return nil
}

func parseCookieLine(line string) (*http.Cookie, string, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return nil, "", false
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	domain, _flag, path, secure, expiration, name, value := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6]
	_ = _flag

	httpOnly := strings.HasPrefix(domain, "#HttpOnly_")
	domain = strings.TrimPrefix(domain, "#HttpOnly_")
	if domain == "" || name == "" {
		return nil, "", false
	}

	host := strings.TrimPrefix(domain, ".")

	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   domain,
		Path:     path,
		Secure:   strings.EqualFold(secure, "TRUE"),
		HttpOnly: httpOnly,
	}
	if expiration != "" && expiration != "0" {
		if exp, err := strconv.ParseInt(expiration, 10, 64); err == nil {
			cookie.RawExpires = expiration
			_ = exp
		}
	}

	return cookie, host, true
}
