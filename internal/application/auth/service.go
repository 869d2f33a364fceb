package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forum-api/internal/application/token"
	"github.com/forum-api/internal/application/verification"
	"github.com/forum-api/internal/domain"
	"github.com/forum-api/internal/pkg/clock"
	"github.com/forum-api/internal/pkg/id"
)

// Service is the state machine tying credentials, verification codes and
// tokens together. Account status moves UNVERIFIED → ACTIVE → SUSPENDED;
// every status/hash mutation rides a version check, so concurrent transitions
// on the same user cannot both win.
type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	ConfirmRegistration(ctx context.Context, userID, code string) (verification.Outcome, error)
	Login(ctx context.Context, identifier, password string) (*domain.TokenPair, error)
	RequestPasswordReset(ctx context.Context, identifier string) error
	ConfirmPasswordReset(ctx context.Context, userID, code, newPassword string) (verification.Outcome, error)
	RequestSensitiveAction(ctx context.Context, userID string) error
	ConfirmSensitiveAction(ctx context.Context, userID, code string) (verification.Outcome, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Suspend(ctx context.Context, userID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	UpdateVersioned(ctx context.Context, userID string, expectedVersion int64, updates map[string]interface{}) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

type hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

type dispatcher interface {
	Enqueue(d domain.Delivery)
}

// txStore commits a code consumption and the user mutation it unlocks in one
// write, so neither can land without the other.
type txStore interface {
	ConsumeCodeAndUpdateUser(ctx context.Context, userID, purpose, digest string, expectedVersion int64, updates map[string]interface{}) error
}

type service struct {
	users      userStore
	codes      verification.Service
	tokens     token.Service
	tx         txStore
	hasher     hasher
	dispatcher dispatcher
	clk        clock.Clock
	// dummyHash absorbs a bcrypt comparison when the login identifier is
	// unknown, keeping that path's timing in line with a wrong password.
	dummyHash string
}

type ServiceDeps struct {
	UserRepo   userStore
	Codes      verification.Service
	Tokens     token.Service
	Tx         txStore
	Hasher     hasher
	Dispatcher dispatcher
	Clock      clock.Clock
}

func NewService(deps ServiceDeps) Service {
	dummyHash, err := deps.Hasher.Hash("equalize-login-timing")
	if err != nil {
		slog.Warn("failed to precompute login timing hash", "err", err)
	}
	return &service{
		users:      deps.UserRepo,
		codes:      deps.Codes,
		tokens:     deps.Tokens,
		tx:         deps.Tx,
		hasher:     deps.Hasher,
		dispatcher: deps.Dispatcher,
		clk:        deps.Clock,
		dummyHash:  dummyHash,
	}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	if _, err := s.users.GetByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("username already taken: %w", domain.ErrConflict)
	}
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	u := &domain.User{
		UserID:       id.New(),
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.StatusUnverified,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, err
	}
	if err := s.sendCode(ctx, u, domain.PurposeRegisterConfirm); err != nil {
		// The account exists; the user can request a fresh code later.
		slog.Warn("failed to issue registration code", "user_id", u.UserID, "err", err)
	}
	return u, nil
}

func (s *service) ConfirmRegistration(ctx context.Context, userID, code string) (verification.Outcome, error) {
	outcome, digest, err := s.codes.Match(ctx, userID, domain.PurposeRegisterConfirm, code)
	if err != nil || outcome != verification.OutcomeConsumed {
		return outcome, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.Status != domain.StatusUnverified {
		// Already confirmed (or suspended since) — burn the code, no transition.
		return s.consumeOnly(ctx, userID, domain.PurposeRegisterConfirm, digest)
	}
	// Code consumption and the status flip commit together: a lost version
	// race rolls both back, leaving the code usable for a retry.
	if err := s.tx.ConsumeCodeAndUpdateUser(ctx, userID, domain.PurposeRegisterConfirm, digest, u.Version, map[string]interface{}{
		"status": domain.StatusActive,
	}); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return verification.OutcomeNotFound, nil
		}
		return "", err
	}
	return verification.OutcomeConsumed, nil
}

// consumeOnly burns a matched code when no user mutation should ride along.
func (s *service) consumeOnly(ctx context.Context, userID, purpose, digest string) (verification.Outcome, error) {
	if err := s.codes.Consume(ctx, userID, purpose, digest); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return verification.OutcomeNotFound, nil
		}
		return "", err
	}
	return verification.OutcomeConsumed, nil
}

func (s *service) Login(ctx context.Context, identifier, password string) (*domain.TokenPair, error) {
	u, err := s.users.GetByUsername(ctx, identifier)
	if err != nil {
		u, err = s.users.GetByEmail(ctx, identifier)
	}
	if err != nil {
		// Unknown identifier and wrong password must look identical, in
		// timing too: burn a comparison against the precomputed hash so the
		// miss is as slow as a mismatch.
		s.hasher.Verify(password, s.dummyHash)
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	switch u.Status {
	case domain.StatusUnverified:
		return nil, fmt.Errorf("account not verified: %w", domain.ErrForbidden)
	case domain.StatusSuspended:
		return nil, fmt.Errorf("account suspended: %w", domain.ErrForbidden)
	}
	pair, err := s.tokens.IssuePair(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateLastLogin(ctx, u.UserID, s.clk.Now()); err != nil {
		slog.Warn("failed to update last login", "user_id", u.UserID, "err", err)
	}
	return pair, nil
}

// RequestPasswordReset always reports success so callers cannot enumerate
// registered addresses.
func (s *service) RequestPasswordReset(ctx context.Context, identifier string) error {
	u, err := s.users.GetByEmail(ctx, identifier)
	if err != nil {
		u, err = s.users.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Debug("password reset requested for unknown identifier")
			return nil
		}
		return err
	}
	return s.sendCode(ctx, u, domain.PurposePasswordReset)
}

func (s *service) ConfirmPasswordReset(ctx context.Context, userID, code, newPassword string) (verification.Outcome, error) {
	outcome, digest, err := s.codes.Match(ctx, userID, domain.PurposePasswordReset, code)
	if err != nil || outcome != verification.OutcomeConsumed {
		return outcome, err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := s.tx.ConsumeCodeAndUpdateUser(ctx, userID, domain.PurposePasswordReset, digest, u.Version, map[string]interface{}{
		"password_hash": hash,
	}); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return verification.OutcomeNotFound, nil
		}
		return "", err
	}
	// Force re-login everywhere: outstanding refresh tokens die with the
	// old password.
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		slog.Warn("failed to revoke refresh tokens after password reset", "user_id", userID, "err", err)
	}
	return outcome, nil
}

func (s *service) RequestSensitiveAction(ctx context.Context, userID string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	return s.sendCode(ctx, u, domain.PurposeSensitiveAction)
}

func (s *service) ConfirmSensitiveAction(ctx context.Context, userID, code string) (verification.Outcome, error) {
	return s.codes.Validate(ctx, userID, domain.PurposeSensitiveAction, code)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	return s.tokens.Rotate(ctx, refreshToken)
}

func (s *service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

func (s *service) Suspend(ctx context.Context, userID string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u.Status == domain.StatusSuspended {
		return nil
	}
	if err := s.users.UpdateVersioned(ctx, userID, u.Version, map[string]interface{}{
		"status": domain.StatusSuspended,
	}); err != nil {
		return err
	}
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// sendCode issues a code for the purpose and enqueues delivery. SMS is
// preferred for sensitive-action codes when the account has a phone; email
// otherwise.
func (s *service) sendCode(ctx context.Context, u *domain.User, purpose string) error {
	plaintext, err := s.codes.Issue(ctx, u.UserID, purpose)
	if err != nil {
		return err
	}
	var d domain.Delivery
	switch {
	case purpose == domain.PurposeSensitiveAction && u.Phone != nil:
		d = domain.Delivery{
			Channel:     domain.ChannelSMS,
			Destination: *u.Phone,
			Body:        "Your confirmation code: " + plaintext,
		}
	default:
		d = domain.Delivery{
			Channel:     domain.ChannelEmail,
			Destination: u.Email,
			Subject:     subjectFor(purpose),
			Body:        "Your verification code: " + plaintext,
		}
	}
	s.dispatcher.Enqueue(d)
	return nil
}

func subjectFor(purpose string) string {
	switch purpose {
	case domain.PurposeRegisterConfirm:
		return "Confirm your registration"
	case domain.PurposePasswordReset:
		return "Password reset code"
	default:
		return "Confirmation code"
	}
}
