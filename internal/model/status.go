package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RequestStatus is the lifecycle state of a relief request.
type RequestStatus int

const (
	StatusOpen RequestStatus = iota
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no normal transition leaves s.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled:
		return true
	case StatusOpen, StatusInProgress:
		return false
	}
	return false
}

func (s RequestStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown(" + strconv.Itoa(int(s)) + ")"
}

func (s *RequestStatus) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("status must be an integer: %w", err)
	}
	v := RequestStatus(n)
	if !v.Valid() {
		return fmt.Errorf("status %d out of range", n)
	}
	*s = v
	return nil
}

// ParseRequestStatus accepts an ordinal ("2") or a name ("completed").
func ParseRequestStatus(raw string) (RequestStatus, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(raw); err == nil {
		s := RequestStatus(n)
		if !s.Valid() {
			return 0, fmt.Errorf("status %d out of range", n)
		}
		return s, nil
	}
	switch raw {
	case "open":
		return StatusOpen, nil
	case "in_progress", "inprogress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	}
	return 0, fmt.Errorf("unknown status %q", raw)
}

// UrgencyLevel orders how quickly a request needs help.
type UrgencyLevel int

const (
	UrgencyLow UrgencyLevel = iota
	UrgencyMedium
	UrgencyHigh
	UrgencyCritical
)

func (u UrgencyLevel) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

func (u UrgencyLevel) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyMedium:
		return "medium"
	case UrgencyHigh:
		return "high"
	case UrgencyCritical:
		return "critical"
	}
	return "unknown(" + strconv.Itoa(int(u)) + ")"
}

func (u *UrgencyLevel) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("urgency must be an integer: %w", err)
	}
	v := UrgencyLevel(n)
	if !v.Valid() {
		return fmt.Errorf("urgency %d out of range", n)
	}
	*u = v
	return nil
}

// ClampUrgency maps any integer onto the nearest valid level.
func ClampUrgency(n int) UrgencyLevel {
	if n < int(UrgencyLow) {
		return UrgencyLow
	}
	if n > int(UrgencyCritical) {
		return UrgencyCritical
	}
	return UrgencyLevel(n)
}
