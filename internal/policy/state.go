// Package policy decides the desired access state from the wall clock and
// reconciles firewall aliases towards it.
package policy

// State is the access mode applied through alias content.
type State int

const (
	// Unknown is the zero value. It never appears in Memory.
	Unknown State = iota
	Blocked
	Allowed
)

func (s State) String() string {
	switch s {
	case Blocked:
		return "BLOCKED"
	case Allowed:
		return "ALLOWED"
	default:
		return "UNKNOWN"
	}
}

// Memory records the last state confirmed applied per instance name.
// It is owned by the caller and never persisted.
type Memory map[string]State

// Current returns the remembered state, or Unknown.
func (m Memory) Current(id string) State {
	if s, ok := m[id]; ok {
		return s
	}
	return Unknown
}
