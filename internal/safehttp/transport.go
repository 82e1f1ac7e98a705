// Package safehttp provides an HTTP client for calling configured endpoints
// that must not reach internal networks.
package safehttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrPrivateAddress is returned when a connection resolves to a loopback,
// private or link-local address.
var ErrPrivateAddress = errors.New("private address denied")

// DefaultTimeout is used when a zero or negative timeout is given.
const DefaultTimeout = 5 * time.Second

// NewTransport returns a transport that rejects connections to private or
// loopback IP ranges to reduce SSRF risk. The check runs on the connected
// address so DNS rebinding cannot bypass it.
func NewTransport(dialTimeout time.Duration) *http.Transport {
	if dialTimeout <= 0 {
		dialTimeout = DefaultTimeout
	}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: dialTimeout}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}

			host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
			ip := net.ParseIP(host)
			if ip == nil {
				conn.Close()
				return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
			}

			if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
				conn.Close()
				return nil, fmt.Errorf("%w: %s", ErrPrivateAddress, ip)
			}

			return conn, nil
		},
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// NewClient returns a client using NewTransport with an overall timeout.
// A zero timeout means DefaultTimeout, not unbounded.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: NewTransport(timeout),
		Timeout:   timeout,
	}
}
