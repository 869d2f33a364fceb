package http

import (
	"github.com/forum-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/forum-api/internal/infrastructure/jwt"
	"github.com/forum-api/internal/infrastructure/notify"
	"github.com/forum-api/internal/pkg/clock"
	"github.com/forum-api/internal/pkg/password"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         *dynamo.UserRepo
	VerificationRepo *dynamo.VerificationRepo
	RefreshTokenRepo *dynamo.RefreshTokenRepo
	TxRepo           *dynamo.TxRepo
	JWTProvider      *jwtinfra.Provider
	Hasher           *password.Hasher
	Dispatcher       *notify.Dispatcher
	Clock            clock.Clock
}
