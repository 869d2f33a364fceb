package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/forum-api/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(t *testing.T, clk clock.Clock) *Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewProviderFromKeys(key, "k1", map[string]*rsa.PublicKey{"k1": &key.PublicKey}, clk)
}

func TestSignVerify_RoundTrip(t *testing.T) {
	clk := &clock.Fixed{T: time.Now().UTC()}
	p := testProvider(t, clk)

	tok, err := p.Sign("u1", TypeAccess, "jti-1", 15*time.Minute)
	require.NoError(t, err)

	claims, err := p.Verify(tok, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "jti-1", claims.ID)
	assert.Equal(t, TypeAccess, claims.TokenType)
}

func TestVerify_WrongType(t *testing.T) {
	clk := &clock.Fixed{T: time.Now().UTC()}
	p := testProvider(t, clk)

	tok, err := p.Sign("u1", TypeRefresh, "jti-1", time.Hour)
	require.NoError(t, err)

	_, err = p.Verify(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestVerify_Expired(t *testing.T) {
	clk := &clock.Fixed{T: time.Now().UTC()}
	p := testProvider(t, clk)

	tok, err := p.Sign("u1", TypeAccess, "jti-1", 15*time.Minute)
	require.NoError(t, err)

	clk.Advance(16 * time.Minute)
	_, err = p.Verify(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_LeewayAbsorbsSkew(t *testing.T) {
	clk := &clock.Fixed{T: time.Now().UTC()}
	p := testProvider(t, clk)

	tok, err := p.Sign("u1", TypeAccess, "jti-1", 15*time.Minute)
	require.NoError(t, err)

	// 15s past expiry is inside the ±30s leeway.
	clk.Advance(15*time.Minute + 15*time.Second)
	_, err = p.Verify(tok, TypeAccess)
	assert.NoError(t, err)
}

func TestVerify_TamperedToken(t *testing.T) {
	clk := &clock.Fixed{T: time.Now().UTC()}
	p := testProvider(t, clk)

	tok, err := p.Sign("u1", TypeAccess, "jti-1", 15*time.Minute)
	require.NoError(t, err)

	tampered := tok[:len(tok)-4] + "AAAA"
	_, err = p.Verify(tampered, TypeAccess)
	assert.Error(t, err)
}

func TestVerify_Garbage(t *testing.T) {
	p := testProvider(t, &clock.Fixed{T: time.Now().UTC()})
	_, err := p.Verify("not-a-jwt", TypeAccess)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_RetiredKeyStillValidates(t *testing.T) {
	clk := &clock.Fixed{T: time.Now().UTC()}
	oldKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	newKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	oldProvider := NewProviderFromKeys(oldKey, "k1", map[string]*rsa.PublicKey{"k1": &oldKey.PublicKey}, clk)
	tok, err := oldProvider.Sign("u1", TypeAccess, "jti-1", time.Hour)
	require.NoError(t, err)

	// Rotated provider signs with k2 but still trusts k1.
	rotated := NewProviderFromKeys(newKey, "k2", map[string]*rsa.PublicKey{
		"k1": &oldKey.PublicKey,
		"k2": &newKey.PublicKey,
	}, clk)

	claims, err := rotated.Verify(tok, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
}

func TestVerify_UnknownKeyID(t *testing.T) {
	clk := &clock.Fixed{T: time.Now().UTC()}
	signer := testProvider(t, clk)

	tok, err := signer.Sign("u1", TypeAccess, "jti-1", time.Hour)
	require.NoError(t, err)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	stranger := NewProviderFromKeys(otherKey, "k9", map[string]*rsa.PublicKey{"k9": &otherKey.PublicKey}, clk)

	_, err = stranger.Verify(tok, TypeAccess)
	assert.Error(t, err)
}
