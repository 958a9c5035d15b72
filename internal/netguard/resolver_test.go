package netguard

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookuper struct {
	answers map[string][]string
	errs    map[string]error
	block   bool
	calls   atomic.Int32
}

func (f *fakeLookuper) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := f.errs[host]; ok {
		return nil, err
	}
	raw, ok := f.answers[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	addrs := make([]netip.Addr, 0, len(raw))
	for _, s := range raw {
		addrs = append(addrs, netip.MustParseAddr(s))
	}
	return addrs, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]netip.Addr
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]netip.Addr{}}
}

func (m *memoryCache) Get(_ context.Context, host string) ([]netip.Addr, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addrs, ok := m.entries[host]
	return addrs, ok, nil
}

func (m *memoryCache) Set(_ context.Context, host string, addrs []netip.Addr, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[host] = addrs
	return nil
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (c *countingRecorder) RecordResolution(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcomes == nil {
		c.outcomes = map[string]int{}
	}
	c.outcomes[outcome]++
}

func TestResolver_Resolve(t *testing.T) {
	lookup := &fakeLookuper{
		answers: map[string][]string{
			"public.example":   {"8.8.8.8", "2001:4860:4860::8888"},
			"mixed.example":    {"8.8.8.8", "127.0.0.1"},
			"mapped.example":   {"::ffff:10.0.0.1"},
			"internal.example": {"192.168.0.5"},
			"empty.example":    {},
		},
		errs: map[string]error{
			"timeout.example": context.DeadlineExceeded,
		},
	}
	resolver := NewResolver(lookup, ResolverOptions{Timeout: time.Second})

	tests := []struct {
		host      string
		wantSafe  bool
		wantAddrs int
		wantErr   bool
	}{
		{host: "public.example", wantSafe: true, wantAddrs: 2},
		{host: "PUBLIC.example.", wantSafe: true, wantAddrs: 2},
		{host: "mixed.example", wantSafe: false, wantAddrs: 2},
		{host: "mapped.example", wantSafe: false, wantAddrs: 1},
		{host: "internal.example", wantSafe: false, wantAddrs: 1},
		{host: "empty.example", wantSafe: false, wantErr: true},
		{host: "nxdomain.example", wantSafe: false, wantErr: true},
		{host: "timeout.example", wantSafe: false, wantErr: true},
		{host: "", wantSafe: false, wantErr: true},
		{host: "8.8.8.8", wantSafe: true, wantAddrs: 1},
		{host: "[::1]", wantSafe: false, wantAddrs: 1},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got := resolver.Resolve(context.Background(), tt.host)
			assert.Equal(t, tt.wantSafe, got.Safe)
			assert.Len(t, got.Addresses, tt.wantAddrs)
			if tt.wantErr {
				require.Error(t, got.Err)
				assert.ErrorIs(t, got.Err, ErrResolutionFailed)
				assert.Empty(t, got.Addresses)
			} else {
				assert.NoError(t, got.Err)
			}
		})
	}
}

func TestResolver_IPLiteralSkipsLookup(t *testing.T) {
	lookup := &fakeLookuper{}
	resolver := NewResolver(lookup, ResolverOptions{})

	got := resolver.Resolve(context.Background(), "::ffff:127.0.0.1")
	assert.False(t, got.Safe)
	assert.EqualValues(t, 0, lookup.calls.Load())
}

func TestResolver_TimeoutIsUnsafe(t *testing.T) {
	lookup := &fakeLookuper{block: true}
	resolver := NewResolver(lookup, ResolverOptions{Timeout: 20 * time.Millisecond})

	start := time.Now()
	got := resolver.Resolve(context.Background(), "slow.example")

	assert.False(t, got.Safe)
	assert.Empty(t, got.Addresses)
	assert.ErrorIs(t, got.Err, ErrResolutionFailed)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolver_CallerCancellation(t *testing.T) {
	lookup := &fakeLookuper{block: true}
	resolver := NewResolver(lookup, ResolverOptions{Timeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got := resolver.Resolve(ctx, "slow.example")
	assert.False(t, got.Safe)
	assert.ErrorIs(t, got.Err, ErrResolutionFailed)
}

func TestResolver_CacheStoresAddressesAndRecomputesSafety(t *testing.T) {
	lookup := &fakeLookuper{answers: map[string][]string{"public.example": {"8.8.8.8"}}}
	cache := newMemoryCache()
	resolver := NewResolver(lookup, ResolverOptions{Cache: cache, CacheTTL: time.Minute})

	first := resolver.Resolve(context.Background(), "public.example")
	require.True(t, first.Safe)
	second := resolver.Resolve(context.Background(), "public.example")
	require.True(t, second.Safe)
	assert.EqualValues(t, 1, lookup.calls.Load())

	// A poisoned cache entry cannot smuggle in a safe verdict.
	_ = cache.Set(context.Background(), "public.example", []netip.Addr{netip.MustParseAddr("8.8.8.8"), netip.MustParseAddr("10.0.0.1")}, time.Minute)
	third := resolver.Resolve(context.Background(), "public.example")
	assert.False(t, third.Safe)
}

func TestResolver_FailuresAreNotCached(t *testing.T) {
	lookup := &fakeLookuper{}
	cache := newMemoryCache()
	resolver := NewResolver(lookup, ResolverOptions{Cache: cache, CacheTTL: time.Minute})

	resolver.Resolve(context.Background(), "missing.example")
	resolver.Resolve(context.Background(), "missing.example")

	assert.EqualValues(t, 2, lookup.calls.Load())
	assert.Empty(t, cache.entries)
}

func TestResolver_RecordsOutcomes(t *testing.T) {
	lookup := &fakeLookuper{answers: map[string][]string{
		"public.example": {"1.1.1.1"},
		"mixed.example":  {"1.1.1.1", "169.254.169.254"},
	}}
	recorder := &countingRecorder{}
	resolver := NewResolver(lookup, ResolverOptions{Recorder: recorder})

	resolver.Resolve(context.Background(), "public.example")
	resolver.Resolve(context.Background(), "mixed.example")
	resolver.Resolve(context.Background(), "missing.example")

	assert.Equal(t, map[string]int{"safe": 1, "unsafe": 1, "failed": 1}, recorder.outcomes)
}

func TestDedupe(t *testing.T) {
	in := []netip.Addr{
		netip.MustParseAddr("8.8.8.8"),
		netip.MustParseAddr("8.8.8.8"),
		netip.MustParseAddr("8.8.4.4"),
	}
	out := dedupe(in)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("8.8.8.8"), netip.MustParseAddr("8.8.4.4")}, out)
}
