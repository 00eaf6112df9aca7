package middlewares_test

import (
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/janitord/janitor/internal/api"
)

// testContext is a minimal api.Context implementation for middleware tests.
type testContext struct {
	response *api.ResponseWriter
	request  *http.Request
	values   map[any]any
	logger   *slog.Logger
}

func newTestContext(w http.ResponseWriter, r *http.Request) *testContext {
	return &testContext{
		response: api.NewResponseWriter(w),
		request:  r,
		values:   make(map[any]any),
		logger:   slog.Default(),
	}
}

func (c *testContext) Request() *http.Request       { return c.request }
func (c *testContext) Response() http.ResponseWriter { return c.response }
func (c *testContext) Context() context.Context      { return c.request.Context() }
func (c *testContext) Param(name string) string      { return "" }

func (c *testContext) Query(name string) string {
	return c.request.URL.Query().Get(name)
}

func (c *testContext) QueryDefault(name, defaultValue string) string {
	v := c.request.URL.Query().Get(name)
	if v == "" {
		return defaultValue
	}
	return v
}

func (c *testContext) Header(name string) string    { return c.request.Header.Get(name) }
func (c *testContext) SetHeader(name, value string) { c.response.Header().Set(name, value) }
func (c *testContext) JSON(code int, v any) error    { c.response.WriteHeader(code); return nil }
func (c *testContext) String(code int, s string) error {
	c.response.WriteHeader(code)
	_, err := c.response.Write([]byte(s))
	return err
}
func (c *testContext) NoContent(code int) error { c.response.WriteHeader(code); return nil }

func (c *testContext) Bind(v any) error { return nil }
func (c *testContext) MultipartForm(maxMemory int64) (*multipart.Form, error) {
	return nil, nil
}

func (c *testContext) Written() bool                     { return c.response.Written() }
func (c *testContext) ResponseWriter() *api.ResponseWriter { return c.response }
func (c *testContext) Logger() *slog.Logger              { return c.logger }
func (c *testContext) LogDebug(msg string, attrs ...any) {}
func (c *testContext) LogInfo(msg string, attrs ...any)  {}
func (c *testContext) LogWarn(msg string, attrs ...any)  {}
func (c *testContext) LogError(msg string, attrs ...any) {}

func (c *testContext) Set(key, value any) {
	c.values[key] = value
}

func (c *testContext) Get(key any) any {
	return c.values[key]
}
