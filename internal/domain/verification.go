package domain

// Verification code purposes. A code is bound to exactly one purpose so a
// leaked registration code cannot be replayed against password reset.
const (
	PurposeRegisterConfirm = "register_confirm"
	PurposePasswordReset   = "password_reset"
	PurposeSensitiveAction = "sensitive_action"
)

// VerificationCode stores a one-time code scoped to (user_id, purpose).
// PK: user_id, SK: purpose — so at most one live code exists per pair and
// issuing a replacement overwrites the prior one in a single write.
// Only the SHA-256 digest of the code is persisted, never the plaintext.
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type VerificationCode struct {
	UserID     string `json:"user_id" dynamodbav:"user_id"`
	Purpose    string `json:"purpose" dynamodbav:"purpose"`
	CodeDigest string `json:"-" dynamodbav:"code_digest"`
	Attempts   int    `json:"attempts" dynamodbav:"attempts"`
	ExpiresAt  int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	IssuedAt   int64  `json:"issued_at" dynamodbav:"issued_at"`
}
