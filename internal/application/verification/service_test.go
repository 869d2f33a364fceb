package verification

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/forum-api/internal/domain"
	"github.com/forum-api/internal/pkg/clock"
	"github.com/forum-api/internal/pkg/code"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory store with the same consume/increment semantics
// as the DynamoDB repo.
type fakeStore struct {
	items map[string]*domain.VerificationCode
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[string]*domain.VerificationCode{}}
}

func key(userID, purpose string) string { return userID + "/" + purpose }

func (f *fakeStore) Put(_ context.Context, v *domain.VerificationCode) error {
	cp := *v
	f.items[key(v.UserID, v.Purpose)] = &cp
	return nil
}

func (f *fakeStore) Get(_ context.Context, userID, purpose string) (*domain.VerificationCode, error) {
	v, ok := f.items[key(userID, purpose)]
	if !ok {
		return nil, fmt.Errorf("no code: %w", domain.ErrNotFound)
	}
	cp := *v
	return &cp, nil
}

func (f *fakeStore) Delete(_ context.Context, userID, purpose string) error {
	delete(f.items, key(userID, purpose))
	return nil
}

func (f *fakeStore) Consume(_ context.Context, userID, purpose, digest string) error {
	v, ok := f.items[key(userID, purpose)]
	if !ok || v.CodeDigest != digest {
		return fmt.Errorf("gone: %w", domain.ErrNotFound)
	}
	delete(f.items, key(userID, purpose))
	return nil
}

func (f *fakeStore) IncrementAttempts(_ context.Context, userID, purpose string) error {
	if v, ok := f.items[key(userID, purpose)]; ok {
		v.Attempts++
	}
	return nil
}

func newTestService(repo store, clk clock.Clock) Service {
	return NewService(ServiceDeps{
		Repo:         repo,
		Clock:        clk,
		RegisterTTL:  24 * time.Hour,
		ResetTTL:     15 * time.Minute,
		SensitiveTTL: 5 * time.Minute,
		MaxAttempts:  5,
	})
}

func TestIssue_ReturnsNumericCodeAndStoresDigest(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &clock.Fixed{T: time.Now().UTC()})

	plaintext, err := svc.Issue(context.Background(), "u1", domain.PurposeRegisterConfirm)
	require.NoError(t, err)
	assert.Len(t, plaintext, 6)

	stored := fs.items[key("u1", domain.PurposeRegisterConfirm)]
	require.NotNil(t, stored)
	assert.NotEqual(t, plaintext, stored.CodeDigest)
	assert.Equal(t, code.Digest(plaintext), stored.CodeDigest)
	assert.Equal(t, 0, stored.Attempts)
}

func TestIssue_UnknownPurpose(t *testing.T) {
	svc := newTestService(newFakeStore(), &clock.Fixed{T: time.Now().UTC()})
	_, err := svc.Issue(context.Background(), "u1", "frobnicate")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestValidate_SingleUse(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &clock.Fixed{T: time.Now().UTC()})

	c, err := svc.Issue(context.Background(), "u1", domain.PurposeRegisterConfirm)
	require.NoError(t, err)

	out, err := svc.Validate(context.Background(), "u1", domain.PurposeRegisterConfirm, c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConsumed, out)

	out, err = svc.Validate(context.Background(), "u1", domain.PurposeRegisterConfirm, c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, out)
}

func TestValidate_ReissueInvalidatesPrior(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &clock.Fixed{T: time.Now().UTC()})

	old, err := svc.Issue(context.Background(), "u1", domain.PurposePasswordReset)
	require.NoError(t, err)
	fresh, err := svc.Issue(context.Background(), "u1", domain.PurposePasswordReset)
	require.NoError(t, err)
	require.NotEqual(t, old, fresh)

	out, err := svc.Validate(context.Background(), "u1", domain.PurposePasswordReset, old)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMismatch, out)

	out, err = svc.Validate(context.Background(), "u1", domain.PurposePasswordReset, fresh)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConsumed, out)
}

func TestValidate_PurposeScoped(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &clock.Fixed{T: time.Now().UTC()})

	c, err := svc.Issue(context.Background(), "u1", domain.PurposeRegisterConfirm)
	require.NoError(t, err)

	// A registration code must not validate for password reset.
	out, err := svc.Validate(context.Background(), "u1", domain.PurposePasswordReset, c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, out)
}

func TestValidate_Expired(t *testing.T) {
	fs := newFakeStore()
	clk := &clock.Fixed{T: time.Now().UTC()}
	svc := newTestService(fs, clk)

	c, err := svc.Issue(context.Background(), "u1", domain.PurposePasswordReset)
	require.NoError(t, err)

	clk.Advance(16 * time.Minute)
	out, err := svc.Validate(context.Background(), "u1", domain.PurposePasswordReset, c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, out)

	// Lazy deletion: the record is gone now.
	assert.Empty(t, fs.items)
}

func TestValidate_LockoutAfterMaxMismatches(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &clock.Fixed{T: time.Now().UTC()})

	c, err := svc.Issue(context.Background(), "u1", domain.PurposeSensitiveAction)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		out, err := svc.Validate(context.Background(), "u1", domain.PurposeSensitiveAction, "wrong-00")
		require.NoError(t, err)
		assert.Equal(t, OutcomeMismatch, out)
	}

	// Sixth attempt is LOCKED even though the submitted code is correct.
	out, err := svc.Validate(context.Background(), "u1", domain.PurposeSensitiveAction, c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLocked, out)
}

func TestValidate_LockedCodeRecoversViaReissue(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &clock.Fixed{T: time.Now().UTC()})

	_, err := svc.Issue(context.Background(), "u1", domain.PurposePasswordReset)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := svc.Validate(context.Background(), "u1", domain.PurposePasswordReset, "000000")
		require.NoError(t, err)
	}

	fresh, err := svc.Issue(context.Background(), "u1", domain.PurposePasswordReset)
	require.NoError(t, err)

	out, err := svc.Validate(context.Background(), "u1", domain.PurposePasswordReset, fresh)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConsumed, out)
}

func TestValidate_NoCodeIssued(t *testing.T) {
	svc := newTestService(newFakeStore(), &clock.Fixed{T: time.Now().UTC()})
	out, err := svc.Validate(context.Background(), "u1", domain.PurposeRegisterConfirm, "123456")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, out)
}

func TestMatch_DoesNotConsume(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &clock.Fixed{T: time.Now().UTC()})

	c, err := svc.Issue(context.Background(), "u1", domain.PurposeRegisterConfirm)
	require.NoError(t, err)

	out, digest, err := svc.Match(context.Background(), "u1", domain.PurposeRegisterConfirm, c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConsumed, out)
	assert.Equal(t, code.Digest(c), digest)

	// Still in the store until Consume runs; a second match succeeds too.
	out, _, err = svc.Match(context.Background(), "u1", domain.PurposeRegisterConfirm, c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConsumed, out)

	require.NoError(t, svc.Consume(context.Background(), "u1", domain.PurposeRegisterConfirm, digest))
	out, _, err = svc.Match(context.Background(), "u1", domain.PurposeRegisterConfirm, c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, out)
}

func TestMatch_MismatchCountsTowardsLockout(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &clock.Fixed{T: time.Now().UTC()})

	_, err := svc.Issue(context.Background(), "u1", domain.PurposePasswordReset)
	require.NoError(t, err)

	out, digest, err := svc.Match(context.Background(), "u1", domain.PurposePasswordReset, "000000")
	require.NoError(t, err)
	assert.Equal(t, OutcomeMismatch, out)
	assert.Empty(t, digest)
	assert.Equal(t, 1, fs.items[key("u1", domain.PurposePasswordReset)].Attempts)
}

func TestConsume_StaleDigestIsNotFound(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &clock.Fixed{T: time.Now().UTC()})

	c, err := svc.Issue(context.Background(), "u1", domain.PurposePasswordReset)
	require.NoError(t, err)
	_, digest, err := svc.Match(context.Background(), "u1", domain.PurposePasswordReset, c)
	require.NoError(t, err)

	// A reissue between match and consume replaces the digest under the key.
	_, err = svc.Issue(context.Background(), "u1", domain.PurposePasswordReset)
	require.NoError(t, err)

	err = svc.Consume(context.Background(), "u1", domain.PurposePasswordReset, digest)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
