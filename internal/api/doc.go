// Package api provides the HTTP request/response abstraction shared by every
// handler in the control plane: a Context carrying the request, response,
// logger and structured-error helpers, plus the Router/Handler/Middleware
// interfaces used to wire routes onto the underlying chi router.
//
// It is deliberately small: this is a machine-to-machine JSON/multipart API
// (workers and operator tooling), not a server-rendered web app, so it
// carries none of a browser-facing framework's session/cookie/i18n/template
// concerns.
package api
