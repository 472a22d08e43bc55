// Package push delivers task events to external webhooks.
//
// Delivery is fire-and-forget: the task manager hands matching events to a
// Dispatcher on a separate goroutine, failures are logged and never retried,
// and a slow or unreachable endpoint never blocks task processing. Consumers
// needing reliable delivery should poll task state or subscribe instead.
package push
