package middlewares

import (
	"errors"

	"github.com/janitord/janitor/internal/api"
	"github.com/janitord/janitor/pkg/jwt"
)

// JWTConfig configures the JWT middleware.
type JWTConfig struct {
	Extractor    api.Extractor
	extractorSet bool
}

// JWTOption configures JWTConfig.
type JWTOption func(*JWTConfig)

// WithJWTExtractor sets a custom token extractor chain.
func WithJWTExtractor(ext api.Extractor) JWTOption {
	return func(cfg *JWTConfig) {
		cfg.Extractor = ext
		cfg.extractorSet = true
	}
}

// JWT returns middleware that extracts a JWT from the request, validates it,
// and stores the parsed claims in the context.
// T is the claims type to parse into (e.g., jwt.StandardClaims or a custom struct).
func JWT[T any](svc *jwt.Service, opts ...JWTOption) api.Middleware {
	cfg := &JWTConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	// Default extractor: Bearer token from Authorization header
	if !cfg.extractorSet {
		cfg.Extractor = api.NewExtractor(
			api.FromBearerToken(),
		)
	}

	return func(next api.HandlerFunc) api.HandlerFunc {
		return func(c api.Context) error {
			token, ok := cfg.Extractor.Extract(c)
			if !ok || token == "" {
				return api.ErrUnauthorized("missing authentication token")
			}

			var claims T
			if err := svc.Parse(token, &claims); err != nil {
				switch {
				case errors.Is(err, jwt.ErrExpiredToken):
					return api.ErrUnauthorized("token expired")
				case errors.Is(err, jwt.ErrInvalidSignature):
					return api.ErrUnauthorized("invalid token")
				default:
					return api.ErrUnauthorized("invalid token")
				}
			}

			c.Set(api.JWTClaimsKey{}, &claims)

			return next(c)
		}
	}
}

// GetJWTClaims extracts parsed JWT claims from the context.
// Returns nil if the JWT middleware is not applied or the type doesn't match.
func GetJWTClaims[T any](c api.Context) *T {
	v, ok := c.Get(api.JWTClaimsKey{}).(*T)
	if !ok {
		return nil
	}
	return v
}
