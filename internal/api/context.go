package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Context carries the request/response pair through a handler chain, along
// with a request-scoped logger and small JSON/param helpers. It replaces the
// stdlib (http.ResponseWriter, *http.Request) pair handlers would otherwise
// thread through by hand.
type Context interface {
	// Request returns the underlying *http.Request.
	Request() *http.Request

	// Response returns the underlying http.ResponseWriter.
	Response() http.ResponseWriter

	// Context returns the request's context.Context.
	Context() context.Context

	// Param returns a URL path parameter (chi route var).
	Param(name string) string

	// Query returns a URL query parameter, or "" if absent.
	Query(name string) string

	// QueryDefault returns a URL query parameter, or def if absent/empty.
	QueryDefault(name, def string) string

	// Header returns a request header value.
	Header(name string) string

	// SetHeader sets a response header.
	SetHeader(name, value string)

	// JSON writes v as a JSON response body with the given status code.
	JSON(code int, v any) error

	// String writes a plain-text response body with the given status code.
	String(code int, body string) error

	// NoContent writes an empty response with the given status code.
	NoContent(code int) error

	// Bind decodes a JSON request body into v.
	Bind(v any) error

	// MultipartForm parses and returns the request's multipart form, with
	// maxMemory bytes kept in memory before spilling to temp files.
	MultipartForm(maxMemory int64) (*multipart.Form, error)

	// Written reports whether a response has already been written.
	Written() bool

	// ResponseWriter returns the wrapping *ResponseWriter for status/size
	// inspection (used by logging middleware).
	ResponseWriter() *ResponseWriter

	// Logger returns the request-scoped logger.
	Logger() *slog.Logger

	LogDebug(msg string, args ...any)
	LogInfo(msg string, args ...any)
	LogWarn(msg string, args ...any)
	LogError(msg string, args ...any)

	// Set stores a value in the request context for downstream handlers.
	Set(key, value any)

	// Get retrieves a value previously stored with Set.
	Get(key any) any
}

type requestContext struct {
	req    *http.Request
	res    *ResponseWriter
	logger *slog.Logger
	values map[any]any
}

// NewContext builds a Context for a single request. logger may be nil, in
// which case slog.Default() is used.
func NewContext(w http.ResponseWriter, r *http.Request, logger *slog.Logger) Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &requestContext{
		req:    r,
		res:    NewResponseWriter(w),
		logger: logger,
	}
}

func (c *requestContext) Request() *http.Request       { return c.req }
func (c *requestContext) Response() http.ResponseWriter { return c.res }
func (c *requestContext) Context() context.Context     { return c.req.Context() }
func (c *requestContext) Param(name string) string     { return chi.URLParam(c.req, name) }
func (c *requestContext) Query(name string) string     { return c.req.URL.Query().Get(name) }

func (c *requestContext) QueryDefault(name, def string) string {
	v := c.req.URL.Query().Get(name)
	if v == "" {
		return def
	}
	return v
}

func (c *requestContext) Header(name string) string { return c.req.Header.Get(name) }

func (c *requestContext) SetHeader(name, value string) {
	c.res.Header().Set(name, value)
}

func (c *requestContext) JSON(code int, v any) error {
	c.res.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.res.WriteHeader(code)
	if v == nil {
		return nil
	}
	return json.NewEncoder(c.res).Encode(v)
}

func (c *requestContext) String(code int, body string) error {
	c.res.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.res.WriteHeader(code)
	_, err := io.WriteString(c.res, body)
	return err
}

func (c *requestContext) NoContent(code int) error {
	c.res.WriteHeader(code)
	return nil
}

func (c *requestContext) Bind(v any) error {
	if c.req.Body == nil {
		return errors.New("api: empty request body")
	}
	defer c.req.Body.Close()
	dec := json.NewDecoder(c.req.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (c *requestContext) MultipartForm(maxMemory int64) (*multipart.Form, error) {
	if err := c.req.ParseMultipartForm(maxMemory); err != nil {
		return nil, err
	}
	return c.req.MultipartForm, nil
}

func (c *requestContext) Written() bool { return c.res.Written() }

func (c *requestContext) ResponseWriter() *ResponseWriter { return c.res }

func (c *requestContext) Logger() *slog.Logger { return c.logger }

func (c *requestContext) LogDebug(msg string, args ...any) { c.logger.Debug(msg, args...) }
func (c *requestContext) LogInfo(msg string, args ...any)  { c.logger.Info(msg, args...) }
func (c *requestContext) LogWarn(msg string, args ...any)  { c.logger.Warn(msg, args...) }
func (c *requestContext) LogError(msg string, args ...any) { c.logger.Error(msg, args...) }

func (c *requestContext) Set(key, value any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = value
}

func (c *requestContext) Get(key any) any {
	if c.values == nil {
		return nil
	}
	return c.values[key]
}

// JWTClaimsKey is the context key type the JWT middleware stores parsed
// claims under. Declared as a distinct type (not a string) to avoid
// collisions with other Context.Set keys.
type JWTClaimsKey struct{}
