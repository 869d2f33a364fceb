package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forum-api/internal/domain"
	jwtinfra "github.com/forum-api/internal/infrastructure/jwt"
	"github.com/forum-api/internal/pkg/clock"
	"github.com/google/uuid"
)

// Service issues, rotates and revokes token pairs. Access tokens are
// validated purely by signature and claims; refresh tokens additionally
// resolve through the store so revocation and rotation hold server-side.
type Service interface {
	IssuePair(ctx context.Context, userID string) (*domain.TokenPair, error)
	// ValidateAccess returns the subject user id of a valid access token.
	ValidateAccess(ctx context.Context, accessToken string) (string, error)
	// Rotate validates a refresh token, revokes it, and issues a fresh pair.
	// The subject must be an ACTIVE user at call time, not just at issuance.
	Rotate(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	// Revoke invalidates a refresh token so future Rotate calls reject it.
	Revoke(ctx context.Context, refreshToken string) error
	// RevokeAllForUser invalidates every outstanding refresh token of a user.
	RevokeAllForUser(ctx context.Context, userID string) error
}

type signer interface {
	Sign(userID, tokenType, jti string, ttl time.Duration) (string, error)
	Verify(tokenStr, wantType string) (*jwtinfra.Claims, error)
}

type refreshTokenStore interface {
	Put(ctx context.Context, rec *domain.RefreshTokenRecord) error
	GetByJTI(ctx context.Context, jti string) (*domain.RefreshTokenRecord, error)
	Revoke(ctx context.Context, jti string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
}

type subjectStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type service struct {
	provider   signer
	tokenRepo  refreshTokenStore
	userRepo   subjectStore
	clk        clock.Clock
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type ServiceDeps struct {
	Provider   signer
	TokenRepo  refreshTokenStore
	UserRepo   subjectStore
	Clock      clock.Clock
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		provider:   deps.Provider,
		tokenRepo:  deps.TokenRepo,
		userRepo:   deps.UserRepo,
		clk:        deps.Clock,
		accessTTL:  deps.AccessTTL,
		refreshTTL: deps.RefreshTTL,
	}
}

func (s *service) IssuePair(ctx context.Context, userID string) (*domain.TokenPair, error) {
	access, err := s.provider.Sign(userID, jwtinfra.TypeAccess, uuid.NewString(), s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshJTI := uuid.NewString()
	refresh, err := s.provider.Sign(userID, jwtinfra.TypeRefresh, refreshJTI, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	now := s.clk.Now()
	rec := &domain.RefreshTokenRecord{
		JTI:       refreshJTI,
		UserID:    userID,
		Revoked:   false,
		ExpiresAt: now.Add(s.refreshTTL).Unix(),
		IssuedAt:  now,
	}
	if err := s.tokenRepo.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("store refresh token record: %w", err)
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *service) ValidateAccess(_ context.Context, accessToken string) (string, error) {
	claims, err := s.provider.Verify(accessToken, jwtinfra.TypeAccess)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, domain.ErrUnauthorized)
	}
	return claims.Subject, nil
}

func (s *service) Rotate(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, rec, err := s.resolveRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	u, err := s.userRepo.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("subject gone: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if u.Status != domain.StatusActive {
		return nil, fmt.Errorf("subject not active: %w", domain.ErrForbidden)
	}

	// Rotation-on-use: the presented token dies here. The conditional write
	// in the repo means a concurrent rotation of the same token loses.
	if err := s.tokenRepo.Revoke(ctx, rec.JTI, s.clk.Now()); err != nil {
		return nil, err
	}
	return s.IssuePair(ctx, u.UserID)
}

func (s *service) Revoke(ctx context.Context, refreshToken string) error {
	_, rec, err := s.resolveRefresh(ctx, refreshToken)
	if err != nil {
		// Logout with an already-dead token is a no-op, not an error.
		if errors.Is(err, domain.ErrUnauthorized) {
			return nil
		}
		return err
	}
	return s.tokenRepo.Revoke(ctx, rec.JTI, s.clk.Now())
}

func (s *service) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.tokenRepo.RevokeAllForUser(ctx, userID, s.clk.Now())
}

// resolveRefresh verifies the JWT and loads its server-side record, mapping
// every failure mode onto domain.ErrUnauthorized so callers cannot probe
// which check failed.
func (s *service) resolveRefresh(ctx context.Context, refreshToken string) (*jwtinfra.Claims, *domain.RefreshTokenRecord, error) {
	claims, err := s.provider.Verify(refreshToken, jwtinfra.TypeRefresh)
	if err != nil {
		return nil, nil, fmt.Errorf("%v: %w", err, domain.ErrUnauthorized)
	}
	rec, err := s.tokenRepo.GetByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, fmt.Errorf("refresh token unknown: %w", domain.ErrUnauthorized)
		}
		return nil, nil, err
	}
	if rec.Revoked {
		return nil, nil, fmt.Errorf("refresh token revoked: %w", domain.ErrUnauthorized)
	}
	return claims, rec, nil
}
