// Package middlewares provides HTTP middleware for internal/httpserver
// applications.
//
// This package includes five middlewares:
//
// # Request ID
//
// RequestID middleware assigns a unique ID to each request for tracing and debugging.
// It checks incoming headers for existing IDs or generates new ones using ULID.
//
//	app := httpserver.New(
//	    httpserver.WithMiddleware(
//	        middlewares.RequestID(),
//	    ),
//	)
//
// Pass RequestIDExtractor() to the logger for automatic request_id in all logs:
//
//	log := logging.New(sentryCfg, middlewares.RequestIDExtractor())
//	app := httpserver.New(
//	    httpserver.WithLogger(log),
//	    httpserver.WithMiddleware(
//	        middlewares.RequestID(),
//	    ),
//	)
//
// # Recover
//
// Recover middleware catches panics and converts them to typed errors.
// The PanicError can be handled by the global ErrorHandler.
//
//	app := httpserver.New(
//	    httpserver.WithMiddleware(
//	        middlewares.Recover(),
//	    ),
//	    httpserver.WithErrorHandler(func(c api.Context, err error) {
//	        if pe, ok := middlewares.AsPanicError(err); ok {
//	            log.Error("panic", "value", pe.Value, "stack", string(pe.Stack))
//	            _ = c.JSON(500, map[string]string{"error": "Internal Server Error"})
//	            return
//	        }
//	        _ = c.JSON(500, map[string]string{"error": err.Error()})
//	    }),
//	)
//
// # Timeout
//
// Timeout middleware enforces request timeouts and returns typed TimeoutError.
// Note: The handler goroutine continues after timeout; use context.Done() for early termination.
//
//	app := httpserver.New(
//	    httpserver.WithMiddleware(
//	        middlewares.Timeout(5*time.Second),
//	    ),
//	    httpserver.WithErrorHandler(func(c api.Context, err error) {
//	        if middlewares.IsTimeoutError(err) {
//	            _ = c.JSON(504, map[string]string{"error": "Gateway Timeout"})
//	            return
//	        }
//	        _ = c.JSON(500, map[string]string{"error": err.Error()})
//	    }),
//	)
//
// # CORS
//
// CORS middleware handles Cross-Origin Resource Sharing headers.
// It processes preflight (OPTIONS) requests and adds CORS headers to all responses.
//
//	app := httpserver.New(
//	    httpserver.WithMiddleware(
//	        middlewares.CORS(),  // Allow all origins (default)
//	    ),
//	)
//
// Configure specific origins and credentials:
//
//	app := httpserver.New(
//	    httpserver.WithMiddleware(
//	        middlewares.CORS(
//	            middlewares.WithAllowOrigins("https://app.example.com"),
//	            middlewares.WithAllowCredentials(),
//	        ),
//	    ),
//	)
//
// Use dynamic origin validation:
//
//	app := httpserver.New(
//	    httpserver.WithMiddleware(
//	        middlewares.CORS(
//	            middlewares.WithAllowOriginFunc(func(origin string) bool {
//	                // Custom logic to validate origin
//	                return strings.HasSuffix(origin, ".example.com")
//	            }),
//	        ),
//	    ),
//	)
//
// # JWT
//
// JWT middleware extracts a JWT from the request, validates it, and stores
// the parsed claims in the context. It uses generics so handlers can work
// with custom claims types.
//
// Basic usage with standard claims:
//
//	jwtSvc, _ := jwt.NewFromString(os.Getenv("JWT_SECRET"))
//	app := httpserver.New(
//	    httpserver.WithMiddleware(
//	        middlewares.JWT[jwt.StandardClaims](jwtSvc),
//	    ),
//	)
//
// Access claims in a handler:
//
//	func (h *Handler) Routes(r api.Router) {
//	    r.GET("/me", h.me)
//	}
//
//	func (h *Handler) me(c api.Context) error {
//	    claims := middlewares.GetJWTClaims[jwt.StandardClaims](c)
//	    return c.JSON(200, map[string]string{"user": claims.Subject})
//	}
//
// Custom claims with additional fields:
//
//	type MyClaims struct {
//	    jwt.StandardClaims
//	    Role   string `json:"role"`
//	    TeamID string `json:"team_id"`
//	}
//
//	func (c MyClaims) Valid() error { return c.StandardClaims.Valid() }
//
//	app := httpserver.New(
//	    httpserver.WithMiddleware(
//	        middlewares.JWT[MyClaims](jwtSvc),
//	    ),
//	)
//
//	// In handler:
//	claims := middlewares.GetJWTClaims[MyClaims](c)
//	if claims.Role == "admin" { ... }
//
// Custom token extractor (e.g., from query parameter):
//
//	app := httpserver.New(
//	    httpserver.WithMiddleware(
//	        middlewares.JWT[jwt.StandardClaims](jwtSvc,
//	            middlewares.WithJWTExtractor(
//	                api.NewExtractor(api.FromQuery("token")),
//	            ),
//	        ),
//	    ),
//	)
//
// # Recommended Middleware Order
//
// Apply middlewares in this order for best results:
//
//	httpserver.WithMiddleware(
//	    middlewares.CORS(),       // First: handle preflight before other processing
//	    middlewares.RequestID(),  // Second: assign ID for all subsequent logging
//	    middlewares.Recover(),    // Third: catch panics from timeout and handlers
//	    middlewares.Timeout(5*time.Second), // Fourth: enforce timeout
//	)
//
// # Complete Example
//
//	import (
//	    "github.com/janitord/janitor/internal/api"
//	    "github.com/janitord/janitor/internal/httpserver"
//	    "github.com/janitord/janitor/internal/logging"
//	    "github.com/janitord/janitor/middlewares"
//	)
//
//	log := logging.New(sentryCfg, middlewares.RequestIDExtractor())
//	app := httpserver.New(
//	    httpserver.WithLogger(log),
//	    httpserver.WithMiddleware(
//	        middlewares.CORS(),
//	        middlewares.RequestID(),
//	        middlewares.Recover(),
//	        middlewares.Timeout(5*time.Second),
//	    ),
//	    httpserver.WithErrorHandler(func(c api.Context, err error) {
//	        switch {
//	        case middlewares.IsPanicError(err):
//	            _ = c.JSON(500, map[string]string{"error": "Internal Server Error"})
//	        case middlewares.IsTimeoutError(err):
//	            _ = c.JSON(504, map[string]string{"error": "Gateway Timeout"})
//	        default:
//	            _ = c.JSON(500, map[string]string{"error": err.Error()})
//	        }
//	    }),
//	)
package middlewares
