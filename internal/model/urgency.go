package model

import (
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

var ErrInvalidUrgency = errors.New("urgency out of range (1-3)")

// Urgency is the priority of an event. Only the three levels below exist;
// anything else is rejected rather than mapped.
type Urgency int

const (
	UrgencyLow    Urgency = 1
	UrgencyMedium Urgency = 2
	UrgencyHigh   Urgency = 3
)

// ParseUrgency converts a raw integer level.
func ParseUrgency(n int) (Urgency, error) {
	u := Urgency(n)
	if !u.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidUrgency, n)
	}
	return u, nil
}

func (u Urgency) Valid() bool {
	return u >= UrgencyLow && u <= UrgencyHigh
}

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyMedium:
		return "medium"
	case UrgencyHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Label is the text shown on the event detail badge.
func (u Urgency) Label() string {
	switch u {
	case UrgencyLow:
		return "Low"
	case UrgencyMedium:
		return "Moderate"
	case UrgencyHigh:
		return "Urgent"
	default:
		return "Unknown"
	}
}

// Badge is the color role for the detail badge.
func (u Urgency) Badge() string {
	switch u {
	case UrgencyLow:
		return "success"
	case UrgencyMedium:
		return "warning"
	case UrgencyHigh:
		return "danger"
	default:
		return "medium"
	}
}

func (u *Urgency) UnmarshalJSON(b []byte) error {
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidUrgency, b)
	}
	parsed, err := ParseUrgency(n)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

func (u *Urgency) UnmarshalYAML(node *yaml.Node) error {
	var n int
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidUrgency, node.Value)
	}
	parsed, err := ParseUrgency(n)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
