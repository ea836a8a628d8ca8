package safety

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Connection bounds for object storage endpoints. Whole-request time is not
// bounded here: a multi-gigabyte archive upload legitimately runs for minutes.
const (
	DialTimeout           = 30 * time.Second
	TLSHandshakeTimeout   = 15 * time.Second
	ResponseHeaderTimeout = 60 * time.Second
)

// BoundTransport applies the object storage connection bounds to tr. It has
// the shape the AWS SDK's buildable client takes in WithTransportOptions, so
// the SDK can still add a custom CA bundle to the same transport.
func BoundTransport(tr *http.Transport) {
	tr.TLSHandshakeTimeout = TLSHandshakeTimeout
	tr.ResponseHeaderTimeout = ResponseHeaderTimeout
	tr.IdleConnTimeout = 90 * time.Second
	tr.MaxIdleConnsPerHost = 10
}

// BoundDialer applies DialTimeout to d.
func BoundDialer(d *net.Dialer) {
	d.Timeout = DialTimeout
}

// ValidateEndpoint checks an S3-compatible endpoint URL and returns it
// without a trailing slash. The endpoint must be http or https with a host
// and no userinfo, query or fragment. Plain http is only accepted for
// loopback hosts such as a local MinIO.
func ValidateEndpoint(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	case u.Host == "":
		return "", fmt.Errorf("URL host is required")
	case u.User != nil:
		// Keys belong in the publish config.
		return "", fmt.Errorf("URL userinfo is not allowed")
	case u.RawQuery != "" || u.Fragment != "":
		return "", fmt.Errorf("URL query or fragment is not allowed")
	case u.Scheme == "http" && !IsLoopbackHost(u):
		return "", fmt.Errorf("plain http is only allowed for loopback hosts, got %q", u.Host)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// IsLoopbackHost reports whether the URL host is localhost or a loopback IP.
func IsLoopbackHost(u *url.URL) bool {
	host := u.Hostname()
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
