package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/spec-kit/messaging-service/internal/domain"
	apperrors "github.com/spec-kit/messaging-service/pkg/util/errorutil"
)

const (
	identityKey  = "auth_identity"
	bearerPrefix = "Bearer "

	msgNoToken      = "No token provided"
	msgInvalidToken = "Invalid or expired token"
	msgForbidden    = "Insufficient permissions"
)

type identityCtxKey struct{}

// FailureRecorder counts rejected requests per failure kind.
type FailureRecorder interface {
	RecordAuthFailure(kind string)
}

// AuthMiddleware verifies bearer tokens and enforces per-route roles.
type AuthMiddleware struct {
	verifier *TokenVerifier
	logger   *zap.Logger
	recorder FailureRecorder
}

// NewAuthMiddleware constructs middleware. logger and recorder may be nil.
func NewAuthMiddleware(verifier *TokenVerifier, logger *zap.Logger, recorder FailureRecorder) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{verifier: verifier, logger: logger, recorder: recorder}
}

// Authorize resolves an Authorization header value into an identity holding
// at least the required role. Failures are *apperrors.DomainError whose Code
// is the failure Kind.
func (m *AuthMiddleware) Authorize(header string, required domain.Role) (domain.Identity, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return domain.Identity{}, apperrors.NewUnauthorized(string(KindNoToken), msgNoToken)
	}

	identity, err := m.verifier.Verify(strings.TrimPrefix(header, bearerPrefix))
	if err != nil {
		kind := KindMalformed
		var verr *VerificationError
		if errors.As(err, &verr) {
			kind = verr.Kind
		}
		return domain.Identity{}, apperrors.NewUnauthorized(string(kind), msgInvalidToken).WithCause(err)
	}

	if CheckPermission(identity, required) != Allowed {
		return domain.Identity{}, apperrors.NewForbidden(string(KindForbidden), msgForbidden)
	}
	return identity, nil
}

// Require gates a route on the given role and attaches the identity to the
// request for downstream handlers.
func (m *AuthMiddleware) Require(required domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := m.Authorize(c.Get(fiber.HeaderAuthorization), required)
		if err != nil {
			m.reject(c, err)
			return err
		}

		c.Locals(identityKey, identity)
		c.SetUserContext(WithIdentity(c.UserContext(), identity))
		return c.Next()
	}
}

func (m *AuthMiddleware) reject(c *fiber.Ctx, err error) {
	domainErr := apperrors.ToDomainError(err)
	if m.recorder != nil {
		m.recorder.RecordAuthFailure(domainErr.Code)
	}
	m.logger.Info("request rejected",
		zap.String("kind", domainErr.Code),
		zap.String("method", utils.CopyString(c.Method())),
		zap.String("path", utils.CopyString(c.Path())),
		zap.NamedError("cause", domainErr.Err))
}

// IdentityFromContext retrieves the identity attached by Require.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(domain.Identity)
	return identity, ok
}

// WithIdentity stores identity in ctx.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

// IdentityFrom retrieves the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(domain.Identity)
	return identity, ok
}
