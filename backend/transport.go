package backend

import (
	"net"
	"net/http"
	"time"
)

// newTransport builds a tuned http.Transport for the single backend
// host this adapter talks to. Adapted from the gateway's per-provider
// connection pool, simplified: there is exactly one upstream host
// here, so the provider-keyed pool collapses to one shared transport.
func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// newClient returns an http.Client over the shared transport with the
// given per-request timeout.
func newClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: newTransport(),
		Timeout:   timeout,
	}
}
