package domain

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var statuses = []Status{StatusPending, StatusActive, StatusCompleted, StatusFailed}

// Statuses returns every defined status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
