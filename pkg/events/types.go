package events

import (
	"time"
)

// Type discriminates the four ingestible event shapes
type Type string

const (
	TypePageview Type = "pageview"
	TypeClick    Type = "click"
	TypeSearch   Type = "search"
	TypeCustom   Type = "custom"
)

// Redis key layout. Fixed for compatibility with existing dashboards:
// raw events are TTL'd strings, counters persist indefinitely, the
// recent-pageviews list is capped, popular searches is a sorted set.
const (
	KeyRecentPageviews = "recent:pageviews"
	KeyPopularSearches = "popular:searches"

	// RecentRingSize bounds the recent-pageviews list
	RecentRingSize = 100
)

// CounterKeyPrefix returns the counter namespace for an event type,
// e.g. "counter:pageview:" — the discriminant is appended per event.
func CounterKeyPrefix(typ Type) string {
	return "counter:" + string(typ) + ":"
}

// Base holds the attributes shared by every event. SessionID is a
// pointer so an absent session serializes as null, matching what the
// frontend tracker sends.
type Base struct {
	Type      Type    `json:"type"`
	UserID    string  `json:"userId"`
	SessionID *string `json:"sessionId"`
	Timestamp string  `json:"timestamp"`
}

// normalize fills the common defaults
func (b *Base) normalize(typ Type) {
	b.Type = typ
	if b.UserID == "" {
		b.UserID = "anonymous"
	}
	if b.Timestamp == "" {
		b.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
}

// Pageview records a page being viewed
type Pageview struct {
	Base
	Page string `json:"page"`
}

// Normalize fills defaults; Page validity is the caller's concern
func (e *Pageview) Normalize() {
	e.Base.normalize(TypePageview)
}

// Click records an element being clicked
type Click struct {
	Base
	Element string `json:"element"`
	Page    string `json:"page"`
}

// Normalize fills defaults including the unknown-page fallback
func (e *Click) Normalize() {
	e.Base.normalize(TypeClick)
	if e.Page == "" {
		e.Page = "unknown"
	}
}

// Search records a search query and how many results it returned
type Search struct {
	Base
	Query   string `json:"query"`
	Results int    `json:"results"`
}

// Normalize fills defaults; Results zero-value already matches the default
func (e *Search) Normalize() {
	e.Base.normalize(TypeSearch)
}

// Custom records an arbitrary named event with an opaque payload
type Custom struct {
	Base
	EventName string                 `json:"eventName"`
	Data      map[string]interface{} `json:"data"`
}

// Normalize fills defaults including an empty data map
func (e *Custom) Normalize() {
	e.Base.normalize(TypeCustom)
	if e.Data == nil {
		e.Data = map[string]interface{}{}
	}
}
