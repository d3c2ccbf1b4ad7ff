// Package api exposes a small HTTP control-plane for the agent.
//
// Separation of Concerns
//
// The api package defines public JSON types (decoupled from core), maps
// core snapshots and reports to JSON, and hosts an HTTP server with minimal
// middleware. The core package remains unaware of HTTP or JSON.
//
// Versioning
//
// All routes are versioned under /v1. Non-breaking additions extend types,
// while breaking changes require a new prefix (/v2).
//
// Server
//
// NewServer wires handlers onto a ServeMux and configures timeouts. Start()
// runs ListenAndServe() in a goroutine; Stop() performs graceful shutdown
// and drops any live stream subscribers. Middleware sets JSON content type
// and logs method/path/duration.
//
// Error Model
//
// APIError uses a string message and a timestamp in RFC3339. Handlers
// validate methods and respond with 405 where appropriate; lifecycle
// conflicts (starting a running loop, stopping a stopped one) map to 409,
// and a probe whose verdict is failure maps to 502 with state updated
// regardless.
//
// Current Endpoints
//
//   - GET  /v1/healthz: basic liveness/readiness
//   - GET  /v1/status:  maps core.Snapshot into stable JSON
//   - POST /v1/probe:   one probe run, optional setting overrides
//   - GET  /v1/reports: persisted history, newest first
//   - POST /v1/start:   launch the periodic watch loop
//   - POST /v1/stop:    halt the periodic watch loop
//   - GET  /v1/watch:   websocket stream of finished reports
package api
