// Package booking holds the slot booking rules: who may register where,
// how many slots remain, and which reference lists are acceptable.
//
// Every rejection is an expected outcome and is returned as one of the
// sentinel errors below, never as a panic.
package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a user or center id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated is returned when no user identity was supplied.
	ErrUnauthenticated = errors.New("user is not authenticated")

	// ErrAlreadyRegistered is returned when the user already holds a slot.
	ErrAlreadyRegistered = errors.New("user is already registered in a center")

	// ErrRegionMismatch is returned when user and center regions differ.
	ErrRegionMismatch = errors.New("user region does not match center region")

	// ErrCenterFull is returned when the center has no remaining slots.
	ErrCenterFull = errors.New("center has no available slots")

	// ErrDuplicateEntry is returned when a reference list repeats an id.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrConcurrentConflict is returned when a store-level race could not be
	// resolved within the retry budget.
	ErrConcurrentConflict = errors.New("concurrent update conflict")

	// ErrCapacityImmutable is returned when an edit tries to change capacity.
	ErrCapacityImmutable = errors.New("capacity cannot be changed once the center is created")

	// ErrOverCapacity is returned when an edited registrant list is longer
	// than the center's capacity.
	ErrOverCapacity = errors.New("registered users exceed available slots")

	// ErrRegistrantRemoved is returned when an edit drops an existing
	// registrant. Registrations are one-way.
	ErrRegistrantRemoved = errors.New("registered users cannot be removed")

	// ErrInvalidInput is returned for malformed create or edit payloads.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited is returned when a user attempts registrations faster
	// than allowed.
	ErrRateLimited = errors.New("too many registration attempts, try again shortly")
)

// DuplicateEntryError carries the first id found more than once.
type DuplicateEntryError struct {
	ID string
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("duplicate entry %q", e.ID)
}

// Is makes errors.Is(err, ErrDuplicateEntry) hold for any DuplicateEntryError.
func (e *DuplicateEntryError) Is(target error) bool {
	return target == ErrDuplicateEntry
}

// OverCapacityError reports how many registrants were submitted against the
// center's capacity.
type OverCapacityError struct {
	Count    int
	Capacity int
}

func (e *OverCapacityError) Error() string {
	return fmt.Sprintf("only %d users may register in this center, got %d", e.Capacity, e.Count)
}

func (e *OverCapacityError) Is(target error) bool {
	return target == ErrOverCapacity
}

// Invalid wraps ErrInvalidInput with a field-specific message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Reason is the stable wire name of a booking outcome.
type Reason string

const (
	ReasonNotFound           Reason = "not_found"
	ReasonUnauthenticated    Reason = "unauthenticated"
	ReasonAlreadyRegistered  Reason = "already_registered"
	ReasonRegionMismatch     Reason = "region_mismatch"
	ReasonCenterFull         Reason = "center_full"
	ReasonDuplicateEntry     Reason = "duplicate_entry"
	ReasonConcurrentConflict Reason = "concurrent_conflict"
	ReasonCapacityImmutable  Reason = "capacity_immutable"
	ReasonOverCapacity       Reason = "over_capacity"
	ReasonRegistrantRemoved  Reason = "registrant_removed"
	ReasonInvalidInput       Reason = "invalid_input"
	ReasonRateLimited        Reason = "rate_limited"
)

var reasons = []struct {
	err    error
	reason Reason
}{
	{ErrNotFound, ReasonNotFound},
	{ErrUnauthenticated, ReasonUnauthenticated},
	{ErrAlreadyRegistered, ReasonAlreadyRegistered},
	{ErrRegionMismatch, ReasonRegionMismatch},
	{ErrCenterFull, ReasonCenterFull},
	{ErrDuplicateEntry, ReasonDuplicateEntry},
	{ErrConcurrentConflict, ReasonConcurrentConflict},
	{ErrCapacityImmutable, ReasonCapacityImmutable},
	{ErrOverCapacity, ReasonOverCapacity},
	{ErrRegistrantRemoved, ReasonRegistrantRemoved},
	{ErrInvalidInput, ReasonInvalidInput},
	{ErrRateLimited, ReasonRateLimited},
}

// ReasonOf maps err to its Reason. It returns "" for nil and for errors
// outside the booking taxonomy, which callers treat as unexpected.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ""
}

// IsExpected reports whether err is one of the booking outcomes.
func IsExpected(err error) bool {
	return ReasonOf(err) != ""
}
