// Package logging provides a minimal logging interface and adapters for ActorMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the actor system and task manager use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - MeshLogger with contextual helpers (task, session, component) and
//     domain specific helpers for task transitions, supervision and push delivery
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	system := actor.NewSystem("mesh", func(o *actor.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
