package netguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrUnsafeHost is returned when a host resolves to reserved address space.
var ErrUnsafeHost = errors.New("host resolves to a private or reserved address")

// ContextDialer is satisfied by *net.Dialer.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// SafeDialer connects only to addresses the Resolver validated in the same
// call. The host is never looked up a second time, so a DNS answer that
// changes between check and connect cannot redirect the connection.
type SafeDialer struct {
	resolver *Resolver
	dialer   ContextDialer
}

// NewSafeDialer wraps resolver. A nil dialer uses a net.Dialer with a 5s timeout.
func NewSafeDialer(resolver *Resolver, dialer ContextDialer) *SafeDialer {
	if dialer == nil {
		dialer = &net.Dialer{Timeout: 5 * time.Second}
	}
	return &SafeDialer{resolver: resolver, dialer: dialer}
}

// DialContext resolves the host part of address, refuses unsafe hosts and
// dials the validated addresses in order until one succeeds.
func (d *SafeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("split address %q: %w", address, err)
	}

	resolved := d.resolver.Resolve(ctx, host)
	if resolved.Err != nil {
		return nil, resolved.Err
	}
	if !resolved.Safe {
		return nil, fmt.Errorf("%w: %s", ErrUnsafeHost, host)
	}

	var lastErr error
	for _, addr := range resolved.Addresses {
		conn, err := d.dialer.DialContext(ctx, network, net.JoinHostPort(addr.Unmap().String(), port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("dial %s: %w", host, lastErr)
}

// HTTPClient returns a client whose every connection goes through d.
// Proxies are disabled so the pinned address is the one actually contacted.
func (d *SafeDialer) HTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = d.DialContext
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// Probe opens and immediately closes a TCP connection to host:port through d.
func (d *SafeDialer) Probe(ctx context.Context, host, port string) error {
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return err
	}
	return conn.Close()
}
