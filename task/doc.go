// Package task implements delegated task lifecycle management on top of the
// actor runtime.
//
// A Manager owns every task it creates: it enforces the lifecycle state
// machine (SUBMITTED -> PROCESSING -> COMPLETED/FAILED, CANCELLED from any
// non-terminal state), runs each task's capability invocation on a dedicated
// worker actor, and fans out lifecycle events to subscribers and push
// notification endpoints.
//
// Consumption models:
//
//   - Pull: Get / Status return the current snapshot
//   - Subscribe: an ordered event channel per subscriber, closed by the
//     task's terminal event
//   - Push: webhook delivery via a push.Dispatcher, filtered per config
//
// All task mutation is serialized through per-task exclusion inside the
// Manager; Task values returned to callers are defensive clones.
package task
