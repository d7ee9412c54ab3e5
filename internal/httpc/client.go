// Package httpc builds HTTP clients for the outbound integrations
// (speech synthesis, agent polling) with timeouts always set.
package httpc

import (
	"net"
	"net/http"
	"time"
)

const (
	dialTimeout   = 10 * time.Second
	dialKeepAlive = 30 * time.Second
	idleTimeout   = 90 * time.Second
)

// NewClient returns an HTTP client whose requests are bounded by the
// given overall timeout. A zero timeout means no request deadline,
// which streaming callers rely on.
func NewClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: dialKeepAlive,
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       idleTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}
