package core

// PushWildcard matches every event type in a PushNotificationConfig.
const PushWildcard = "*"

// PushNotificationConfig describes webhook-style delivery of task events to
// an external URL. Associated 1:1 with a task; set at task creation or
// replaced explicitly via the task manager. Replacing a config does not
// retroactively redeliver past events.
type PushNotificationConfig struct {
	// URL is the endpoint that receives event payloads via HTTP POST.
	URL string `json:"url"`
	// Events is the set of event type discriminators to deliver. The
	// wildcard "*" selects all event types. An empty set delivers nothing.
	Events []string `json:"events"`
	// Token is an optional bearer credential attached to deliveries.
	Token string `json:"token,omitempty"`
}

// Matches reports whether the config selects the given event type.
func (c PushNotificationConfig) Matches(eventType string) bool {
	for _, e := range c.Events {
		if e == PushWildcard || e == eventType {
			return true
		}
	}
	return false
}
