package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the claim set of a sakya session token. Validity is
// fully determined by the HMAC signature and the expiry claim; no database
// lookup is required to accept a token.
//
// Claims on the wire: sub (account id), device_id, iat, exp.
type SessionClaims struct {
	jwt.RegisteredClaims

	// DeviceID identifies the device the token was issued to.
	DeviceID string `json:"device_id"`
}

// SessionToken pairs parsed session claims with the compact serialized
// token string.
type SessionToken struct {
	// SignedString is the compact JWS representation
	// (base64url header.payload.signature).
	SignedString string `json:"-"`

	// Claims is the validated claim set.
	Claims SessionClaims `json:"-"`
}

// AccountID returns the "sub" claim.
func (t *SessionToken) AccountID() string {
	return t.Claims.Subject
}

// String returns the compact JWS serialization. Implements [fmt.Stringer].
func (t *SessionToken) String() string {
	return t.SignedString
}
