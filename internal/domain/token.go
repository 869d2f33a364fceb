package domain

import "time"

// TokenPair is what login, registration confirm and refresh hand back: a
// short-lived access JWT and a longer-lived, revocable refresh JWT.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokenRecord is the server-side state for one issued refresh token,
// keyed by the token's jti claim. The signature on the JWT carries subject,
// type and expiry; the record carries revocation state. Records outlive
// rotation (revoked=true) until the TTL purges them at natural expiry.
type RefreshTokenRecord struct {
	JTI       string     `json:"jti" dynamodbav:"jti"`
	UserID    string     `json:"user_id" dynamodbav:"user_id"`
	Revoked   bool       `json:"revoked" dynamodbav:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" dynamodbav:"revoked_at"`
	ExpiresAt int64      `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	IssuedAt  time.Time  `json:"issued_at" dynamodbav:"issued_at"`
}
