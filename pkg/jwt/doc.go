// Package jwt is a thin wrapper over golang-jwt/jwt/v5 for issuing and
// parsing HS256 bearer tokens. It exists so callers (middlewares.JWT) can
// depend on a small Service/Claims surface instead of the library directly.
package jwt
