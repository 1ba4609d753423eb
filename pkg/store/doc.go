// Package store owns the lifecycle of the Redis connection shared by
// event ingestion and report aggregation.
//
// The connection policy is deliberately fail-fast: Connect makes one
// attempt plus a bounded number of fixed-delay retries, then gives up for
// the process lifetime. The service keeps serving HTTP either way —
// ingestion drops writes and reports return empty payloads while
// disconnected. A background monitor keeps IsConnected truthful when
// Redis restarts after a successful connect.
//
// No other component creates Redis clients; the Manager is constructed
// once in main and injected everywhere it is needed.
package store
