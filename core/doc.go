// Package core provides the foundational domain types and interfaces used by
// ActorMesh. It defines the core abstractions for:
//
//   - Tasks (trackable units of delegated work with status, history & artifacts)
//   - Messages and Artifacts (immutable, part-based content records)
//   - TaskEvents (ephemeral notifications of task state / content changes)
//   - Capabilities (the pluggable boundary that actually produces results)
//   - Pluggable stores for task persistence
//
// The package intentionally keeps implementation concerns (actor scheduling,
// task orchestration, transports) out of scope, exposing small interfaces to
// enable custom backends and extensions. All exported identifiers include
// concise documentation to aid discoverability and external consumption.
package core
