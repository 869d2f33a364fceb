package domain

import "time"

// Account status values. A user starts UNVERIFIED, becomes ACTIVE after
// confirming registration, and may be suspended by an administrator.
// Suspension is terminal here; reinstatement is an operational action
// outside the API surface.
const (
	StatusUnverified = "UNVERIFIED"
	StatusActive     = "ACTIVE"
	StatusSuspended  = "SUSPENDED"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the credential-store aggregate. Rows are never deleted, only
// status-transitioned. Version guards every status/hash mutation: writers
// update conditionally on the version they read, so concurrent transitions
// cannot interleave into an inconsistent status/hash pair.
type User struct {
	UserID       string     `json:"id" dynamodbav:"user_id"`
	Username     string     `json:"username" dynamodbav:"username"`
	Email        string     `json:"email" dynamodbav:"email"`
	Phone        *string    `json:"phone,omitempty" dynamodbav:"phone"`
	PasswordHash string     `json:"-" dynamodbav:"password_hash"`
	Role         string     `json:"role" dynamodbav:"role"`
	Status       string     `json:"status" dynamodbav:"status"`
	Version      int64      `json:"-" dynamodbav:"version"`
	LastLoginAt  *time.Time `json:"last_login,omitempty" dynamodbav:"last_login_at"`
	CreatedAt    time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type RegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=32"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Phone    *string `json:"phone" validate:"omitempty,e164"`
}

type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=32"`
	Phone    *string `json:"phone" validate:"omitempty,e164"`
}
