package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/electronicjova/storefront-backend/pkg/enums"
)

// Actors recorded for changes no user made.
const (
	SystemWebhookActor = "system:webhook"
	SystemSweeperActor = "system:sweeper"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Email  string         `json:"email,omitempty"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller resolved from a token.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   enums.UserRole
	// System names a background actor. Empty for token identities.
	System string
}

// SystemIdentity acts with admin rights under the given actor name.
func SystemIdentity(actor string) Identity {
	return Identity{Role: enums.UserRoleAdmin, System: actor}
}

func (c *AccessTokenClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

func (i Identity) IsAdmin() bool {
	return i.Role == enums.UserRoleAdmin
}

// ActorID is the value stored in audit columns such as changed_by.
func (i Identity) ActorID() string {
	if i.System != "" {
		return i.System
	}
	return i.UserID.String()
}
