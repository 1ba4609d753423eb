// Package events implements the ingestion half of the analytics API:
// one POST route per event shape (pageview, click, search, custom),
// presence-only validation, normalization defaults, and fire-and-forget
// persistence into Redis.
//
// Ingestion always responds 200 with the normalized event echoed back.
// Persistence failures are logged and counted but never surfaced to the
// caller; the Tracker returns an explicit WriteStatus so that policy is
// visible where it is applied.
package events
