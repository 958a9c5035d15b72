package netguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrResolutionFailed marks a hostname that produced no usable addresses.
var ErrResolutionFailed = errors.New("resolution failed")

const defaultLookupTimeout = 2 * time.Second

// Lookuper performs forward name resolution. *net.Resolver satisfies it.
type Lookuper interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Cache stores address sets for hostnames. Only addresses are cached; the
// safety verdict is always recomputed.
type Cache interface {
	Get(ctx context.Context, host string) ([]netip.Addr, bool, error)
	Set(ctx context.Context, host string, addrs []netip.Addr, ttl time.Duration) error
}

// OutcomeRecorder receives one of "safe", "unsafe" or "failed" per resolution.
type OutcomeRecorder interface {
	RecordResolution(outcome string)
}

// ResolvedHost is the point-in-time verdict for a hostname.
type ResolvedHost struct {
	Host      string
	Addresses []netip.Addr
	// Safe is true only when Addresses is non-empty and every entry is public.
	Safe bool
	// Err is set when resolution failed; Addresses is empty in that case.
	Err error
}

// ResolverOptions tunes a Resolver.
type ResolverOptions struct {
	Timeout  time.Duration
	Cache    Cache
	CacheTTL time.Duration
	Logger   *zap.Logger
	Recorder OutcomeRecorder
}

// Resolver resolves hostnames and classifies every returned address.
type Resolver struct {
	lookup   Lookuper
	timeout  time.Duration
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
	recorder OutcomeRecorder
	group    singleflight.Group
}

// NewResolver builds a Resolver. A nil lookup uses net.DefaultResolver.
func NewResolver(lookup Lookuper, opts ResolverOptions) *Resolver {
	if lookup == nil {
		lookup = net.DefaultResolver
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultLookupTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		lookup:   lookup,
		timeout:  opts.Timeout,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   opts.Logger,
		recorder: opts.Recorder,
	}
}

// Resolve looks up every IPv4 and IPv6 address of host and reports whether
// all of them are public. It never returns an error: failures yield an empty,
// unsafe ResolvedHost with Err populated.
func (r *Resolver) Resolve(ctx context.Context, host string) ResolvedHost {
	host = normalizeHost(host)

	var result ResolvedHost
	if host == "" {
		result = ResolvedHost{Err: fmt.Errorf("%w: empty hostname", ErrResolutionFailed)}
	} else if addr, err := netip.ParseAddr(host); err == nil {
		result = newResolvedHost(host, []netip.Addr{addr})
	} else if addrs, err := r.lookupAddrs(ctx, host); err != nil {
		result = ResolvedHost{Host: host, Err: err}
	} else {
		result = newResolvedHost(host, addrs)
	}

	r.record(result)
	return result
}

func newResolvedHost(host string, addrs []netip.Addr) ResolvedHost {
	safe := len(addrs) > 0
	for _, addr := range addrs {
		if !IsPublic(addr) {
			safe = false
			break
		}
	}
	return ResolvedHost{Host: host, Addresses: addrs, Safe: safe}
}

func (r *Resolver) lookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	if addrs, ok := r.cached(ctx, host); ok {
		return addrs, nil
	}

	// The shared lookup is detached from any single caller so one cancelled
	// request cannot fail the others; it is still bounded by r.timeout.
	ch := r.group.DoChan(host, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.lookup.LookupNetIP(lookupCtx, "ip", host)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrResolutionFailed, host, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrResolutionFailed, host, res.Err)
		}
		addrs := dedupe(res.Val.([]netip.Addr))
		if len(addrs) == 0 {
			return nil, fmt.Errorf("%w: %s: no addresses", ErrResolutionFailed, host)
		}
		r.store(ctx, host, addrs)
		return addrs, nil
	}
}

func (r *Resolver) cached(ctx context.Context, host string) ([]netip.Addr, bool) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return nil, false
	}
	cacheCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	addrs, ok, err := r.cache.Get(cacheCtx, host)
	if err != nil {
		r.logger.Debug("resolver cache read failed", zap.String("host", host), zap.Error(err))
		return nil, false
	}
	if !ok || len(addrs) == 0 {
		return nil, false
	}
	return addrs, true
}

func (r *Resolver) store(ctx context.Context, host string, addrs []netip.Addr) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return
	}
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.cache.Set(cacheCtx, host, addrs, r.cacheTTL); err != nil {
		r.logger.Debug("resolver cache write failed", zap.String("host", host), zap.Error(err))
	}
}

func (r *Resolver) record(result ResolvedHost) {
	outcome := "unsafe"
	switch {
	case result.Err != nil:
		outcome = "failed"
		r.logger.Warn("hostname resolution failed", zap.String("host", result.Host), zap.Error(result.Err))
	case result.Safe:
		outcome = "safe"
	default:
		r.logger.Warn("hostname resolved to reserved address",
			zap.String("host", result.Host),
			zap.Stringers("addresses", result.Addresses))
	}
	if r.recorder != nil {
		r.recorder.RecordResolution(outcome)
	}
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	return host
}

// dedupe returns a fresh slice so callers sharing a singleflight result never
// alias each other's backing array.
func dedupe(addrs []netip.Addr) []netip.Addr {
	out := make([]netip.Addr, 0, len(addrs))
	for _, addr := range addrs {
		if !slices.Contains(out, addr) {
			out = append(out, addr)
		}
	}
	return out
}
