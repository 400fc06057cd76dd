package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/service/auth"
	"github.com/phrazzld/tasker-api/internal/store"
)

// TokenPair is an issued access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthResult is the outcome of a successful registration or login.
type AuthResult struct {
	User   *domain.User
	Tokens TokenPair
}

// AuthService registers users and manages their token pairs.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*AuthResult, error)
	// Login returns ErrInvalidCredentials for unknown emails and wrong
	// passwords alike.
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// Refresh exchanges a refresh token for a new pair and revokes the old one.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	// Logout revokes a refresh token until it expires.
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

type authServiceImpl struct {
	userStore store.UserStore
	jwt       auth.JWTService
	hasher    auth.PasswordHasher
	revoker   auth.Revoker
	db        *sql.DB
	logger    *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(
	userStore store.UserStore,
	jwtService auth.JWTService,
	hasher auth.PasswordHasher,
	revoker auth.Revoker,
	db *sql.DB,
	logger *slog.Logger,
) (AuthService, error) {
	switch {
	case userStore == nil:
		return nil, domain.NewValidationError("userStore", "cannot be nil", domain.ErrValidation)
	case jwtService == nil:
		return nil, domain.NewValidationError("jwtService", "cannot be nil", domain.ErrValidation)
	case hasher == nil:
		return nil, domain.NewValidationError("hasher", "cannot be nil", domain.ErrValidation)
	case revoker == nil:
		return nil, domain.NewValidationError("revoker", "cannot be nil", domain.ErrValidation)
	case db == nil:
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &authServiceImpl{
		userStore: userStore,
		jwt:       jwtService,
		hasher:    hasher,
		revoker:   revoker,
		db:        db,
		logger:    logger.With(slog.String("component", "auth_service")),
	}, nil
}

// Register implements AuthService.Register
func (s *authServiceImpl) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(email, password)
	if err != nil {
		return nil, userValidationError(err)
	}

	hashed, err := s.hasher.Hash(user.Password)
	if err != nil {
		return nil, NewAuthServiceError("register", "failed to hash password", err)
	}
	user.HashedPassword = hashed

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.userStore.WithTx(tx).Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			log.Debug("registration with existing email")
			return nil, err
		}
		log.Error("failed to save user", slog.String("error", err.Error()))
		return nil, NewAuthServiceError("register", "failed to save user", err)
	}
	user.Password = ""

	tokens, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	log.Info("user registered", slog.String("user_id", user.ID.String()))
	return &AuthResult{User: user, Tokens: *tokens}, nil
}

// Login implements AuthService.Login
func (s *authServiceImpl) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		log.Error("failed to load user for login", slog.String("error", err.Error()))
		return nil, NewAuthServiceError("login", "failed to load user", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			log.Error("password comparison failed",
				slog.String("error", err.Error()),
				slog.String("user_id", user.ID.String()))
		}
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: *tokens}, nil
}

// Refresh implements AuthService.Refresh
func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.validateRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	if _, err := s.userStore.GetByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, auth.ErrInvalidRefreshToken
		}
		return nil, NewAuthServiceError("refresh", "failed to load user", err)
	}

	claimed, err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt)
	if err != nil {
		return nil, NewAuthServiceError("refresh", "failed to revoke used token", err)
	}
	if !claimed {
		return nil, auth.ErrRevokedToken
	}
	return s.issue(ctx, claims.UserID)
}

// Logout implements AuthService.Logout
func (s *authServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.validateRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	claimed, err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt)
	if err != nil {
		return NewAuthServiceError("logout", "failed to revoke token", err)
	}
	if !claimed {
		return auth.ErrRevokedToken
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("user logged out",
		slog.String("user_id", claims.UserID.String()))
	return nil
}

// Me implements AuthService.Me
func (s *authServiceImpl) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, err
		}
		return nil, NewAuthServiceError("me", "failed to load user", err)
	}
	return user, nil
}

func (s *authServiceImpl) validateRefresh(ctx context.Context, refreshToken string) (*auth.Claims, error) {
	if refreshToken == "" {
		return nil, domain.NewValidationError("refresh_token", "refresh token is required", nil)
	}
	claims, err := s.jwt.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, NewAuthServiceError("refresh", "failed to check revocation", err)
	}
	if revoked {
		return nil, auth.ErrRevokedToken
	}
	return claims, nil
}

func (s *authServiceImpl) issue(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	access, err := s.jwt.GenerateToken(ctx, userID)
	if err != nil {
		return nil, NewAuthServiceError("issue_tokens", "failed to generate access token", err)
	}
	refresh, err := s.jwt.GenerateRefreshToken(ctx, userID)
	if err != nil {
		return nil, NewAuthServiceError("issue_tokens", "failed to generate refresh token", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().UTC().Add(s.jwt.AccessTokenLifetime()),
	}, nil
}

// userValidationError attaches the offending field to user validation errors.
func userValidationError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyEmail), errors.Is(err, domain.ErrInvalidEmail):
		return domain.NewValidationError("email", err.Error(), err)
	case errors.Is(err, domain.ErrEmptyPassword),
		errors.Is(err, domain.ErrPasswordTooShort),
		errors.Is(err, domain.ErrPasswordTooLong):
		return domain.NewValidationError("password", err.Error(), err)
	}
	return domain.NewValidationError("", err.Error(), err)
}
