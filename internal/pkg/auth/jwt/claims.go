package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token (JWT) claims for the
// session server. It includes standard claims required by the JWT specification
// and custom claims that tie a token to one connected session.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// Nickname is the registry key of the connected user the token belongs to.
	// Lookups through it are case-insensitive.
	Nickname string `json:"nickname"`

	// SessionID identifies the specific connected session. A token whose session
	// no longer matches the registry entry is stale and must be re-issued through
	// registration.
	SessionID string `json:"session_id"`
}
