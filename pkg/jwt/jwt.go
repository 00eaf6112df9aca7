package jwt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretLen = 32

// Service signs and verifies HS256 bearer tokens for the administrative
// API (spec.md §6's shared operator token). Claims are passed through as
// any and round-tripped via JSON, so callers can use either StandardClaims
// or a struct embedding it without this package needing generics.
type Service struct {
	secret []byte
}

// NewFromString builds a Service from a raw secret string. The secret must
// be at least 32 bytes, matching the HMAC-SHA256 key-size recommendation.
func NewFromString(secret string) (*Service, error) {
	if len(secret) < minSecretLen {
		return nil, ErrSecretTooShort
	}
	return &Service{secret: []byte(secret)}, nil
}

// Generate signs claims into a compact HS256 token string.
func (s *Service) Generate(claims any) (string, error) {
	mapClaims, err := toMapClaims(claims)
	if err != nil {
		return "", fmt.Errorf("jwt: marshal claims: %w", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies tokenString's signature and expiry, and decodes its
// claims into the value pointed to by claims.
func (s *Service) Parse(tokenString string, claims any) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("jwt: unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidSignature
	}
	if !token.Valid {
		return ErrInvalidSignature
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ErrInvalidSignature
	}
	raw, err := json.Marshal(mapClaims)
	if err != nil {
		return fmt.Errorf("jwt: remarshal claims: %w", err)
	}
	if err := json.Unmarshal(raw, claims); err != nil {
		return fmt.Errorf("jwt: decode claims: %w", err)
	}
	return nil
}

// toMapClaims round-trips v through JSON into a jwt.MapClaims so arbitrary
// claim structs can be signed without implementing jwt.Claims themselves.
func toMapClaims(v any) (jwt.MapClaims, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m jwt.MapClaims
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
