// Package model defines the core domain types for the slot booking system.
package model

import "time"

// Center is a vaccination center with a fixed number of slots.
type Center struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Region          string    `json:"region"`
	Capacity        int       `json:"capacity"`
	RegisteredUsers []string  `json:"registered_users"`
	CreatedAt       time.Time `json:"created_at"`
}

// Registered returns the number of users registered at the center.
func (c *Center) Registered() int {
	return len(c.RegisteredUsers)
}

// HasRegistrant reports whether userID is in the center's registrant list.
func (c *Center) HasRegistrant(userID string) bool {
	for _, id := range c.RegisteredUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// User is a person who can book a slot at one center in their region.
type User struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Region             string    `json:"region"`
	RegisteredCenterID string    `json:"registered_center_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// IsRegistered reports whether the user already holds a slot somewhere.
func (u *User) IsRegistered() bool {
	return u.RegisteredCenterID != ""
}

// EntityKind names the type of an entity whose cached views may go stale.
type EntityKind string

const (
	KindCenter EntityKind = "center"
	KindUser   EntityKind = "user"
)

// EntityRef identifies a changed entity, e.g. "center:42".
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r EntityRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// CenterRef and UserRef are shorthands for building EntityRefs.
func CenterRef(id string) EntityRef { return EntityRef{Kind: KindCenter, ID: id} }
func UserRef(id string) EntityRef   { return EntityRef{Kind: KindUser, ID: id} }

// Registration is the outcome of a successful booking.
type Registration struct {
	CenterID  string    `json:"center_id"`
	UserID    string    `json:"user_id"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	// Invalidate lists the entities whose cached representations are now stale.
	Invalidate []EntityRef `json:"invalidated"`
}

// EligibilityResult backs the "show register control" decision.
type EligibilityResult struct {
	Eligible              bool   `json:"eligible"`
	Reason                string `json:"reason,omitempty"`
	RegisteredCenterID    string `json:"registered_center_id,omitempty"`
	RegisteredCenterTitle string `json:"registered_center_title,omitempty"`
}

// Availability backs the remaining-slots display.
type Availability struct {
	CenterID   string `json:"center_id"`
	Capacity   int    `json:"capacity"`
	Registered int    `json:"registered"`
	Remaining  int    `json:"remaining"`
}

// ListValidation is the outcome of a duplicate check over a reference list.
type ListValidation struct {
	OK          bool   `json:"ok"`
	DuplicateID string `json:"duplicate_id,omitempty"`
}

// CreateCenterRequest is the payload for creating a new center.
type CreateCenterRequest struct {
	Title    string `json:"title"`
	Region   string `json:"region"`
	Capacity int    `json:"capacity"`
}

// UpdateCenterRequest is the payload for editing a center. Nil fields are
// left untouched.
type UpdateCenterRequest struct {
	Title           *string   `json:"title,omitempty"`
	Region          *string   `json:"region,omitempty"`
	Capacity        *int      `json:"capacity,omitempty"`
	RegisteredUsers *[]string `json:"registered_users,omitempty"`
}

// CenterUpdate is the result of a center edit.
type CenterUpdate struct {
	Center     *Center     `json:"center"`
	Invalidate []EntityRef `json:"invalidated"`
}

// CreateUserRequest is the payload for signing up a new user.
type CreateUserRequest struct {
	Name   string `json:"name"`
	Region string `json:"region"`
}

// ValidateListRequest is the payload for checking a reference list.
type ValidateListRequest struct {
	IDs []string `json:"ids"`
}

// CenterView is a center decorated with its remaining slots.
type CenterView struct {
	Center
	Remaining int `json:"remaining"`
}

// RegisterResponse is returned by the register endpoint.
type RegisterResponse struct {
	OK          bool        `json:"ok"`
	Error       string      `json:"error,omitempty"`
	Message     string      `json:"message,omitempty"`
	Position    int         `json:"position,omitempty"`
	Invalidated []EntityRef `json:"invalidated,omitempty"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// BookingResult summarises the outcome of a single registration attempt.
// Used in the concurrent test harness.
type BookingResult struct {
	UserID  string
	Success bool
	Error   error
}
