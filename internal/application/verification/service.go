package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forum-api/internal/domain"
	"github.com/forum-api/internal/pkg/clock"
	"github.com/forum-api/internal/pkg/code"
)

// Outcome is the result of validating a submitted code. Callers branch on all
// of these, so they are values rather than errors.
type Outcome string

const (
	OutcomeConsumed Outcome = "CONSUMED"
	OutcomeExpired  Outcome = "EXPIRED"
	OutcomeMismatch Outcome = "MISMATCH"
	OutcomeNotFound Outcome = "NOT_FOUND"
	OutcomeLocked   Outcome = "LOCKED"
)

// Code shapes per purpose. Registration and reset codes are typed from an
// email or SMS, so short and numeric; sensitive-action codes trade a little
// typing comfort for a larger space.
const (
	numericLen      = 6
	alphanumericLen = 8
)

type Service interface {
	// Issue generates a fresh one-time code for (userID, purpose), invalidating
	// any prior unconsumed code for the pair, and returns the plaintext for
	// delivery. Only a digest is stored.
	Issue(ctx context.Context, userID, purpose string) (string, error)
	// Validate checks a submitted code and consumes it on match. A consumed
	// code is gone: validating the same value again yields NOT_FOUND.
	Validate(ctx context.Context, userID, purpose, submitted string) (Outcome, error)
	// Match checks a submitted code without consuming it. On CONSUMED it
	// returns the stored digest, which the caller hands to Consume — or to a
	// transactional write that deletes the code alongside its own mutation.
	Match(ctx context.Context, userID, purpose, submitted string) (Outcome, string, error)
	// Consume removes a code previously matched, conditioned on the digest
	// still being in place. A concurrent consumer winning first surfaces as
	// domain.ErrNotFound.
	Consume(ctx context.Context, userID, purpose, digest string) error
}

type store interface {
	Put(ctx context.Context, v *domain.VerificationCode) error
	Get(ctx context.Context, userID, purpose string) (*domain.VerificationCode, error)
	Delete(ctx context.Context, userID, purpose string) error
	Consume(ctx context.Context, userID, purpose, digest string) error
	IncrementAttempts(ctx context.Context, userID, purpose string) error
}

type service struct {
	repo         store
	clk          clock.Clock
	registerTTL  time.Duration
	resetTTL     time.Duration
	sensitiveTTL time.Duration
	maxAttempts  int
}

type ServiceDeps struct {
	Repo         store
	Clock        clock.Clock
	RegisterTTL  time.Duration
	ResetTTL     time.Duration
	SensitiveTTL time.Duration
	MaxAttempts  int
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:         deps.Repo,
		clk:          deps.Clock,
		registerTTL:  deps.RegisterTTL,
		resetTTL:     deps.ResetTTL,
		sensitiveTTL: deps.SensitiveTTL,
		maxAttempts:  deps.MaxAttempts,
	}
}

func (s *service) Issue(ctx context.Context, userID, purpose string) (string, error) {
	plaintext, ttl, err := s.generate(purpose)
	if err != nil {
		return "", err
	}
	now := s.clk.Now()
	v := &domain.VerificationCode{
		UserID:     userID,
		Purpose:    purpose,
		CodeDigest: code.Digest(plaintext),
		Attempts:   0,
		ExpiresAt:  now.Add(ttl).Unix(),
		IssuedAt:   now.Unix(),
	}
	// Put replaces any prior code on the (userID, purpose) key in one write.
	if err := s.repo.Put(ctx, v); err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}
	return plaintext, nil
}

func (s *service) Validate(ctx context.Context, userID, purpose, submitted string) (Outcome, error) {
	outcome, digest, err := s.Match(ctx, userID, purpose, submitted)
	if err != nil || outcome != OutcomeConsumed {
		return outcome, err
	}
	if err := s.Consume(ctx, userID, purpose, digest); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return OutcomeNotFound, nil
		}
		return "", err
	}
	return OutcomeConsumed, nil
}

func (s *service) Match(ctx context.Context, userID, purpose, submitted string) (Outcome, string, error) {
	v, err := s.repo.Get(ctx, userID, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return OutcomeNotFound, "", nil
		}
		return "", "", err
	}
	if v.ExpiresAt < s.clk.Now().Unix() {
		if err := s.repo.Delete(ctx, userID, purpose); err != nil {
			slog.Warn("failed to delete expired verification code", "user_id", userID, "purpose", purpose, "err", err)
		}
		return OutcomeExpired, "", nil
	}
	// Lockout is checked before comparison: a correct guess after the limit
	// is still rejected, forcing the user to request a fresh code.
	if v.Attempts >= s.maxAttempts {
		return OutcomeLocked, "", nil
	}
	if !code.Matches(submitted, v.CodeDigest) {
		if err := s.repo.IncrementAttempts(ctx, userID, purpose); err != nil {
			slog.Warn("failed to increment code attempts", "user_id", userID, "purpose", purpose, "err", err)
		}
		return OutcomeMismatch, "", nil
	}
	return OutcomeConsumed, v.CodeDigest, nil
}

// Consume is the conditional delete behind Validate: of two concurrent
// consumers of the same code, exactly one wins, the other gets
// domain.ErrNotFound.
func (s *service) Consume(ctx context.Context, userID, purpose, digest string) error {
	return s.repo.Consume(ctx, userID, purpose, digest)
}

func (s *service) generate(purpose string) (string, time.Duration, error) {
	switch purpose {
	case domain.PurposeRegisterConfirm:
		c, err := code.Numeric(numericLen)
		return c, s.registerTTL, err
	case domain.PurposePasswordReset:
		c, err := code.Numeric(numericLen)
		return c, s.resetTTL, err
	case domain.PurposeSensitiveAction:
		c, err := code.Alphanumeric(alphanumericLen)
		return c, s.sensitiveTTL, err
	default:
		return "", 0, fmt.Errorf("unknown verification purpose %q: %w", purpose, domain.ErrBadRequest)
	}
}
