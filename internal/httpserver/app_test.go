package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/janitord/janitor/internal/api"
	"github.com/janitord/janitor/internal/httpserver"
)

// testHandler is a simple handler for testing route registration.
type testHandler struct {
	message string
}

func (h *testHandler) Routes(r api.Router) {
	r.GET("/", h.index)
	r.GET("/json", h.jsonResponse)
	r.GET("/user/{id}", h.getUser)
	r.POST("/echo", h.echo)
	r.Route("/api", func(r api.Router) {
		r.GET("/health", h.health)
	})
}

func (h *testHandler) index(c api.Context) error {
	return c.String(http.StatusOK, h.message)
}

func (h *testHandler) jsonResponse(c api.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *testHandler) getUser(c api.Context) error {
	id := c.Param("id")
	return c.JSON(http.StatusOK, map[string]string{"id": id})
}

func (h *testHandler) echo(c api.Context) error {
	body, _ := io.ReadAll(c.Request().Body)
	return c.String(http.StatusOK, string(body))
}

func (h *testHandler) health(c api.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// testMiddleware adds a header to all responses.
func testMiddleware(headerName, headerValue string) api.Middleware {
	return func(next api.HandlerFunc) api.HandlerFunc {
		return func(c api.Context) error {
			c.SetHeader(headerName, headerValue)
			return next(c)
		}
	}
}

func TestNew(t *testing.T) {
	app := httpserver.New()
	if app == nil {
		t.Fatal("New() returned nil")
	}
}

func TestNewWithOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := httpserver.New(
		httpserver.WithLogger(logger),
		httpserver.WithAddress(":9090"),
		httpserver.WithShutdownTimeout(10*time.Second),
	)
	if app == nil {
		t.Fatal("New() returned nil")
	}
}

func TestShutdownHook(t *testing.T) {
	var hookCalled atomic.Bool

	app := httpserver.New(
		httpserver.WithAddress(":0"),
		httpserver.WithShutdownHook(func(ctx context.Context) error {
			hookCalled.Store(true)
			return nil
		}),
		httpserver.WithShutdownTimeout(1*time.Second),
	)

	done := make(chan error, 1)
	go func() {
		done <- app.Run()
	}()

	time.Sleep(50 * time.Millisecond)

	if err := app.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Run to complete")
	}

	if !hookCalled.Load() {
		t.Error("shutdown hook was not called")
	}
}

func TestStartupHookFailureAbortsRun(t *testing.T) {
	app := httpserver.New(
		httpserver.WithAddress(":0"),
		httpserver.WithStartupHook(func(ctx context.Context) error {
			return context.DeadlineExceeded
		}),
	)

	if err := app.Run(); err == nil {
		t.Fatal("expected Run() to return an error when a startup hook fails")
	}
}

func TestContextJSON(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	c := api.NewContext(w, r, nil)

	data := map[string]string{"key": "value"}
	if err := c.JSON(http.StatusOK, data); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}

	var got map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if got["key"] != "value" {
		t.Errorf("got key = %q, want %q", got["key"], "value")
	}
}

func TestContextString(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	c := api.NewContext(w, r, nil)

	if err := c.String(http.StatusOK, "hello world"); err != nil {
		t.Fatalf("String() error: %v", err)
	}
	if got := w.Body.String(); got != "hello world" {
		t.Errorf("body = %q, want %q", got, "hello world")
	}
}

// TestIntegration drives a live App end-to-end over a real TCP listener.
func TestIntegration(t *testing.T) {
	app := httpserver.New(
		httpserver.WithAddress(":0"),
		httpserver.WithHandlers(&testHandler{message: "hello"}),
		httpserver.WithMiddleware(testMiddleware("X-Test", "test-value")),
	)

	done := make(chan error, 1)
	go func() {
		done <- app.Run()
	}()

	time.Sleep(50 * time.Millisecond)
	baseURL := "http://" + app.Addr()

	t.Run("GET /", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/")
		if err != nil {
			t.Fatalf("GET / error: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "hello" {
			t.Errorf("body = %q, want %q", string(body), "hello")
		}
		if got := resp.Header.Get("X-Test"); got != "test-value" {
			t.Errorf("X-Test header = %q, want %q", got, "test-value")
		}
	})

	t.Run("GET /json", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/json")
		if err != nil {
			t.Fatalf("GET /json error: %v", err)
		}
		defer resp.Body.Close()

		var data map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			t.Fatalf("json decode error: %v", err)
		}
		if data["status"] != "ok" {
			t.Errorf("status = %q, want %q", data["status"], "ok")
		}
	})

	t.Run("GET /user/{id}", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/user/123")
		if err != nil {
			t.Fatalf("GET /user/123 error: %v", err)
		}
		defer resp.Body.Close()

		var data map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			t.Fatalf("json decode error: %v", err)
		}
		if data["id"] != "123" {
			t.Errorf("id = %q, want %q", data["id"], "123")
		}
	})

	t.Run("POST /echo", func(t *testing.T) {
		resp, err := http.Post(baseURL+"/echo", "text/plain", bytes.NewReader([]byte("echo me")))
		if err != nil {
			t.Fatalf("POST /echo error: %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if string(body) != "echo me" {
			t.Errorf("body = %q, want %q", string(body), "echo me")
		}
	})

	t.Run("GET /api/health", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/health")
		if err != nil {
			t.Fatalf("GET /api/health error: %v", err)
		}
		defer resp.Body.Close()

		var data map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			t.Fatalf("json decode error: %v", err)
		}
		if data["status"] != "healthy" {
			t.Errorf("status = %q, want %q", data["status"], "healthy")
		}
	})

	if err := app.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Run to complete")
	}
}
