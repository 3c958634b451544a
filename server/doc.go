// Package server hosts the captiongen HTTP API on Gin, served over HTTP/1.1
// and h2c, and exposes it as a lifecycle component.
//
// Transport middleware (server/middleware) runs in front of Gin:
//
//   - RequestID: X-Request-Id propagation into the request context
//   - SecurityHeaders: nosniff, frame deny, referrer policy, CSP
//   - CORS: origin allow-list and preflight
//   - BodySizeLimit: caps request bodies, 413 when the declared length is over
//
// Gin middleware adds panic recovery, request logging with HTTP metrics,
// and the per-client RateLimit applied to individual routes.
//
// Endpoints (server/endpoint): /health aggregates component health and
// /info reports the build.
package server
