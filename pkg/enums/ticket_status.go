package enums

import "fmt"

// TicketStatus tracks the lifecycle of a purchased ticket. Transitions are
// forward-only: pending -> valid -> used, or pending -> cancelled/failed.
type TicketStatus string

const (
	TicketStatusPending   TicketStatus = "pending"
	TicketStatusValid     TicketStatus = "valid"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusFailed    TicketStatus = "failed"
)

var validTicketStatuses = []TicketStatus{
	TicketStatusPending,
	TicketStatusValid,
	TicketStatusUsed,
	TicketStatusCancelled,
	TicketStatusFailed,
}

// String implements fmt.Stringer.
func (t TicketStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TicketStatus.
func (t TicketStatus) IsValid() bool {
	for _, candidate := range validTicketStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTicketStatus converts raw input into a TicketStatus.
func ParseTicketStatus(value string) (TicketStatus, error) {
	for _, candidate := range validTicketStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ticket status %q", value)
}
