package actor

import "time"

// Directive is a supervision decision applied to a failing actor.
type Directive int

const (
	// DirectiveResume discards the error, keeps actor state and continues
	// with the next message.
	DirectiveResume Directive = iota
	// DirectiveRestart discards actor state, reinitializes the behavior from
	// its factory and continues. The PID and queued messages survive.
	DirectiveRestart
	// DirectiveStop terminates the actor, invalidates its PID and notifies
	// the parent with a Terminated message.
	DirectiveStop
	// DirectiveEscalate treats the failure as the parent's own failure,
	// applying the parent's strategy instead.
	DirectiveEscalate
)

// String returns the directive name for logging.
func (d Directive) String() string {
	switch d {
	case DirectiveResume:
		return "resume"
	case DirectiveRestart:
		return "restart"
	case DirectiveStop:
		return "stop"
	case DirectiveEscalate:
		return "escalate"
	default:
		return "unknown"
	}
}

// Decider maps a processing error to a supervision directive.
type Decider func(err error) Directive

// Strategy is the restart policy a parent attaches to a child at spawn time.
// Decide is consulted per failure; the retry budget guards against restart
// storms: more than MaxRetries failures within the Within window escalate
// regardless of the per-failure decision.
type Strategy struct {
	// MaxRetries caps tolerated failures inside the window. Zero tolerates
	// no retry: the second failure inside the window escalates.
	MaxRetries int
	// Within is the sliding window failures are counted over. Zero disables
	// the budget entirely.
	Within time.Duration
	// Decide picks the per-failure directive. Nil defaults to restart.
	Decide Decider
}

// OneForOne builds a strategy that supervises each child independently.
func OneForOne(maxRetries int, within time.Duration, decide Decider) Strategy {
	return Strategy{MaxRetries: maxRetries, Within: within, Decide: decide}
}

// AlwaysRestart is a Decider that restarts on every failure.
func AlwaysRestart(error) Directive { return DirectiveRestart }

// AlwaysResume is a Decider that drops the error and keeps going.
func AlwaysResume(error) Directive { return DirectiveResume }

// AlwaysStop is a Decider that stops the actor on the first failure.
func AlwaysStop(error) Directive { return DirectiveStop }

// DefaultStrategy restarts on failure, escalating after 10 failures within
// one minute.
var DefaultStrategy = OneForOne(10, time.Minute, AlwaysRestart)

// decide resolves the directive for a failure, applying the retry budget.
// failures is the recent failure history including the current one.
func (s Strategy) decide(err error, failures []time.Time) Directive {
	if s.Within > 0 && countWithin(failures, s.Within) > s.MaxRetries {
		return DirectiveEscalate
	}
	if s.Decide == nil {
		return DirectiveRestart
	}
	return s.Decide(err)
}

// countWithin counts failures younger than the window.
func countWithin(failures []time.Time, within time.Duration) int {
	cutoff := time.Now().Add(-within)
	n := 0
	for _, t := range failures {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// pruneFailures drops failure timestamps older than the window to keep the
// history bounded.
func pruneFailures(failures []time.Time, within time.Duration) []time.Time {
	if within <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-within)
	kept := failures[:0]
	for _, t := range failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
