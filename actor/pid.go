package actor

import "fmt"

// PID is the opaque address of an actor: the owning system's name, the host
// the system runs on (empty for the local process) and a system-unique local
// id. PIDs are plain values used as keys into the system registry and are
// never dereferenced directly, avoiding ownership cycles between supervisors
// and children.
//
// A PID is created on spawn and invalidated when its actor stops; sending to
// an invalidated PID fails with ErrActorNotFound.
type PID struct {
	System string `json:"system"`
	Host   string `json:"host,omitempty"`
	ID     string `json:"id"`
}

// Local reports whether the PID addresses an actor in this process.
func (p PID) Local() bool { return p.Host == "" }

// Zero reports whether the PID is the zero value (no actor).
func (p PID) Zero() bool { return p.ID == "" }

// String renders the address as system[@host]/id.
func (p PID) String() string {
	if p.Host != "" {
		return fmt.Sprintf("%s@%s/%s", p.System, p.Host, p.ID)
	}
	return fmt.Sprintf("%s/%s", p.System, p.ID)
}
