// Package realtime pushes analytics events to websocket clients as
// they are ingested. A single Hub owns the client set and fans
// messages out; each connection runs the usual read/write pump pair
// with ping/pong keepalives. Messages are JSON envelopes carrying a
// type, a payload, and a server timestamp.
package realtime
