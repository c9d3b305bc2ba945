package domain

// Principal names who caused a mutation: a member of staff or the system
// itself for job-driven transitions. It is threaded explicitly through every
// mutating call rather than read from ambient request state, so attribution
// is visible in signatures and trivially testable.
type Principal struct {
	Username string
	// StaffCode is the probation staff identifier when the actor is a COM.
	StaffCode string
}

// System is the sentinel principal for scheduled job transitions.
var System = Principal{Username: "SYSTEM"}

// IsSystem reports whether the principal is the job sentinel.
func (p Principal) IsSystem() bool { return p.Username == System.Username }

func (p Principal) String() string { return p.Username }
