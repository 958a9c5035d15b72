package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/messaging-service/internal/auth"
	"github.com/spec-kit/messaging-service/internal/config"
	"github.com/spec-kit/messaging-service/internal/domain"
	"github.com/spec-kit/messaging-service/internal/repository"
)

const (
	tempPasswordChars = 16
	// bcrypt refuses longer input.
	maxPasswordBytes = 72
)

var (
	ErrInvalidEmail  = errors.New("email is not valid")
	ErrEmailTaken    = errors.New("email already registered")
	ErrMissingFields = errors.New("email and password are required")
	ErrPasswordLong  = errors.New("password exceeds 72 bytes")
)

// LoginResult is returned to a caller that presented valid credentials.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// RegisterResult carries the new account and, when the caller supplied no
// password, the generated one. It is returned exactly once.
type RegisterResult struct {
	User              *domain.User
	TemporaryPassword string
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	issuer     *auth.TokenIssuer
	validate   *validator.Validate
	logger     *zap.Logger
	bcryptCost int

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository, issuer *auth.TokenIssuer, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      users,
		issuer:     issuer,
		validate:   validator.New(),
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates an end-user account. Accounts created here always carry
// the user role.
func (s *AuthService) Register(ctx context.Context, email, password string) (*RegisterResult, error) {
	email = domain.NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) > maxPasswordBytes {
		return nil, ErrPasswordLong
	}

	result := &RegisterResult{}
	if password == "" {
		password = strings.ReplaceAll(uuid.NewString(), "-", "")[:tempPasswordChars]
		result.TemporaryPassword = password
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	result.User = user
	return result, nil
}

// Login authenticates an account and issues a signed token. Unknown emails
// and wrong passwords both yield auth.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if len(password) > maxPasswordBytes {
		// No stored hash can match; answer like any other bad password.
		_ = auth.ComparePassword(s.placeholderHash(), password[:maxPasswordBytes])
		return nil, auth.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Spend the same bcrypt work as a real comparison.
			_ = auth.ComparePassword(s.placeholderHash(), password)
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, auth.ErrInvalidCredentials
	}

	token, exp, err := s.issuer.Issue(domain.Identity{ID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: user}, nil
}

func (s *AuthService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		hash, err := auth.HashPassword(uuid.NewString(), s.bcryptCost)
		if err != nil {
			s.logger.Warn("placeholder hash", zap.Error(err))
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
