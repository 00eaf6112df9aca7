package jwt

import "time"

// StandardClaims is the minimal claim set the Janitor control plane issues
// operator tokens with: a subject, an expiry, and an issued-at time. Custom
// claim types embed it to add application-specific fields (see
// middlewares.JWT's generic Claims type parameter).
type StandardClaims struct {
	Subject   string `json:"sub,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

// Valid reports whether the claims have not expired. Parse already rejects
// expired tokens before claims are decoded; this method exists so embedding
// types can satisfy the legacy jwt.Claims Valid() contract some callers
// still expect.
func (c StandardClaims) Valid() error {
	if c.ExpiresAt != 0 && time.Now().Unix() > c.ExpiresAt {
		return ErrExpiredToken
	}
	return nil
}
