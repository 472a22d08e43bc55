// Package transport exposes the task manager over HTTP.
//
// Endpoints:
//
//	POST   /tasks                  submit a task (optionally subscribing via push config)
//	GET    /tasks                  list tasks, filterable by session_id
//	GET    /tasks/{id}             full task snapshot
//	GET    /tasks/{id}/status      status only
//	POST   /tasks/{id}/cancel      cancel (idempotent for already cancelled tasks)
//	PUT    /tasks/{id}/push        set or replace the push notification config
//	GET    /tasks/{id}/subscribe   server-sent events stream of task events
//
// The SSE stream frames each task event as "event: <type>" plus a JSON data
// line and ends when the task reaches a terminal state.
package transport
