// Package avatar builds avatar URLs for the configured external avatar service.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/messaging-service/internal/config"
	"github.com/spec-kit/messaging-service/internal/netguard"
)

// ErrorKind classifies a BuildError.
type ErrorKind string

const KindUnsafeHost ErrorKind = "UnsafeHost"

// BuildError is returned when no avatar URL may be handed out.
type BuildError struct {
	Kind ErrorKind
	Host string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("avatar %s (%s): %v", e.Kind, e.Host, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// HostResolver is the subset of netguard.Resolver the builder needs.
type HostResolver interface {
	Resolve(ctx context.Context, host string) netguard.ResolvedHost
}

// Builder produces https://<host>/<path> avatar URLs after validating host.
type Builder struct {
	host        string
	path        string
	rawQuery    string
	placeholder string
	resolver    HostResolver
	logger      *zap.Logger
}

// NewBuilder constructs a Builder for the configured avatar service.
func NewBuilder(cfg config.AvatarConfig, resolver HostResolver, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	path, rawQuery, _ := strings.Cut(cfg.PathTemplate, "?")
	return &Builder{
		host:        strings.TrimSpace(cfg.Host),
		path:        path,
		rawQuery:    rawQuery,
		placeholder: cfg.PlaceholderURL,
		resolver:    resolver,
		logger:      logger,
	}
}

// Host returns the configured avatar hostname.
func (b *Builder) Host() string {
	return b.host
}

// Build returns the avatar URL for email, or a *BuildError with kind
// UnsafeHost when the avatar host did not resolve to public addresses only.
func (b *Builder) Build(ctx context.Context, email string) (string, error) {
	hash := HashEmail(email)

	resolved := b.resolver.Resolve(ctx, b.host)
	if !resolved.Safe {
		cause := resolved.Err
		if cause == nil {
			cause = netguard.ErrUnsafeHost
		}
		return "", &BuildError{Kind: KindUnsafeHost, Host: b.host, Err: cause}
	}

	u := url.URL{
		Scheme:   "https",
		Host:     b.host,
		Path:     fmt.Sprintf(b.path, hash),
		RawQuery: b.rawQuery,
	}
	return u.String(), nil
}

// BuildOrDefault is Build with the configured placeholder substituted on failure.
func (b *Builder) BuildOrDefault(ctx context.Context, email string) string {
	avatarURL, err := b.Build(ctx, email)
	if err != nil {
		var buildErr *BuildError
		if errors.As(err, &buildErr) {
			b.logger.Warn("avatar url unavailable, using placeholder",
				zap.String("kind", string(buildErr.Kind)),
				zap.String("host", buildErr.Host),
				zap.Error(buildErr.Err))
		}
		return b.placeholder
	}
	return avatarURL
}
