// Package internal holds the RSVP server internals.
//
// The tree is organized by responsibility:
// - api: HTTP routing, middleware, handlers and problem responses
// - domain: events and users, including the reservation rules
// - storage: Postgres and SQLite repositories plus their migrations
// - assets: stored event images
// - jobs: River workers and the orphan image sweep
// - auth, audit, config, metrics, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
