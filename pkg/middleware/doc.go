// Package middleware provides the HTTP middleware chain for the API
// surface: request IDs, access logging, panic recovery, CORS, and a
// Redis-backed fixed-window rate limiter shared across instances.
package middleware
