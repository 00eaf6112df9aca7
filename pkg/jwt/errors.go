package jwt

import "errors"

// ErrExpiredToken is returned by Parse when the token's exp claim has passed.
var ErrExpiredToken = errors.New("jwt: token expired")

// ErrInvalidSignature is returned by Parse when the token's signature does
// not verify against the service's secret, or the token is otherwise
// malformed.
var ErrInvalidSignature = errors.New("jwt: invalid signature")

// ErrSecretTooShort is returned by NewFromString when the secret is shorter
// than minSecretLen, too weak to HMAC-sign tokens with.
var ErrSecretTooShort = errors.New("jwt: secret must be at least 32 bytes")
