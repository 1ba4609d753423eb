// Package api assembles the public HTTP surface of the analytics
// service: ingestion and metrics routes, the websocket stream, the
// service index, and the health endpoint, all behind the shared
// middleware chain.
package api
