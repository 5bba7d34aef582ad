// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/slot-booking/internal/booking"
	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
)

const maxCapacity = 100_000

// CenterStore persists centers.
type CenterStore interface {
	Create(ctx context.Context, c *model.Center) error
	GetByID(ctx context.Context, id string) (*model.Center, error)
	List(ctx context.Context) ([]model.Center, error)
	UpdateDetails(ctx context.Context, id, title, region string) (*model.Center, error)
}

// UserStore persists users.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// RegistrationStore applies registrations atomically. Implementations must
// run check on the state they are about to modify, with concurrent writers
// excluded, and apply both sides of the registration together or not at all.
type RegistrationStore interface {
	Book(ctx context.Context, userID, centerID string, check func(*model.User, *model.Center) error) (*model.Registration, error)
	AppendRegistrants(ctx context.Context, centerID string, userIDs []string, check func(*model.Center, []*model.User) error) error
	ListByCenter(ctx context.Context, centerID string) ([]string, error)
}

// BookingService orchestrates slot booking operations.
type BookingService struct {
	centers       CenterStore
	users         UserStore
	registrations RegistrationStore
	now           func() time.Time
}

// NewBookingService constructs a BookingService with its dependencies.
func NewBookingService(
	centers CenterStore,
	users UserStore,
	registrations RegistrationStore,
) *BookingService {
	return &BookingService{
		centers:       centers,
		users:         users,
		registrations: registrations,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateCenter validates the request and stores a center with an empty
// registrant list. Capacity is fixed from here on.
func (s *BookingService) CreateCenter(ctx context.Context, req model.CreateCenterRequest) (*model.Center, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Region = strings.TrimSpace(req.Region)
	if req.Title == "" {
		return nil, booking.Invalid("title is required")
	}
	if booking.RegionOf(req.Region) == "" {
		return nil, booking.Invalid("region is required")
	}
	if req.Capacity < 0 {
		return nil, booking.Invalid("capacity cannot be negative")
	}
	if req.Capacity > maxCapacity {
		return nil, booking.Invalid("capacity cannot exceed 100,000")
	}

	center := &model.Center{
		ID:              uuid.New().String(),
		Title:           req.Title,
		Region:          req.Region,
		Capacity:        req.Capacity,
		RegisteredUsers: []string{},
		CreatedAt:       s.now(),
	}
	if err := s.centers.Create(ctx, center); err != nil {
		return nil, fmt.Errorf("create center: %w", err)
	}
	return center, nil
}

// GetCenter returns a single center by ID.
func (s *BookingService) GetCenter(ctx context.Context, id string) (*model.Center, error) {
	if id == "" {
		return nil, booking.Invalid("center id is required")
	}
	center, err := s.centers.GetByID(ctx, id)
	if err != nil {
		return nil, surface(err, "get center")
	}
	return center, nil
}

// ListCenters returns all centers.
func (s *BookingService) ListCenters(ctx context.Context) ([]model.Center, error) {
	return s.centers.List(ctx)
}

// UpdateCenter applies an administrative edit. Title and region may change;
// capacity may be echoed back but never altered; a registrant list may only
// grow, and only with users not registered elsewhere.
//
// Title and region are written before registrants are appended. When the
// append then fails, the returned update is non-nil alongside the error and
// lists the entities that were already changed.
func (s *BookingService) UpdateCenter(ctx context.Context, id string, req model.UpdateCenterRequest) (*model.CenterUpdate, error) {
	center, err := s.GetCenter(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Capacity != nil && *req.Capacity != center.Capacity {
		return nil, booking.ErrCapacityImmutable
	}

	title, region := center.Title, center.Region
	if req.Title != nil {
		if title = strings.TrimSpace(*req.Title); title == "" {
			return nil, booking.Invalid("title cannot be empty")
		}
	}
	if req.Region != nil {
		if region = strings.TrimSpace(*req.Region); booking.RegionOf(region) == "" {
			return nil, booking.Invalid("region cannot be empty")
		}
	}

	var added []string
	if req.RegisteredUsers != nil {
		if added, err = booking.ValidateRegistrantEdit(center, *req.RegisteredUsers); err != nil {
			return nil, err
		}
	}

	update := &model.CenterUpdate{Center: center}
	if title != center.Title || region != center.Region {
		if update.Center, err = s.centers.UpdateDetails(ctx, id, title, region); err != nil {
			return nil, surface(err, "update center")
		}
		update.Invalidate = append(update.Invalidate, model.CenterRef(id))
	}
	if len(added) == 0 {
		return update, nil
	}

	if err := s.registrations.AppendRegistrants(ctx, id, added, booking.CheckAppend); err != nil {
		if len(update.Invalidate) == 0 {
			return nil, surface(err, "append registrants")
		}
		return update, surface(err, "append registrants")
	}
	if len(update.Invalidate) == 0 {
		update.Invalidate = append(update.Invalidate, model.CenterRef(id))
	}
	for _, userID := range added {
		update.Invalidate = append(update.Invalidate, model.UserRef(userID))
	}
	if update.Center, err = s.centers.GetByID(ctx, id); err != nil {
		return update, surface(err, "reload center")
	}
	return update, nil
}

// CreateUser signs up a user. A new user never has a registered center.
func (s *BookingService) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Region = strings.TrimSpace(req.Region)
	if req.Name == "" {
		return nil, booking.Invalid("name is required")
	}
	if booking.RegionOf(req.Region) == "" {
		return nil, booking.Invalid("region is required")
	}

	user := &model.User{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Region:    req.Region,
		CreatedAt: s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GetUser returns a single user by ID.
func (s *BookingService) GetUser(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, booking.Invalid("user id is required")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, surface(err, "get user")
	}
	return user, nil
}

// Eligibility reports whether userID may register at centerID. Ineligible
// outcomes are part of the result, not errors; only storage failures are
// returned as errors.
func (s *BookingService) Eligibility(ctx context.Context, userID, centerID string) (*model.EligibilityResult, error) {
	if userID == "" {
		return &model.EligibilityResult{Reason: string(booking.ReasonUnauthenticated)}, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil && !errors.Is(err, booking.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	center, err := s.centers.GetByID(ctx, centerID)
	if err != nil && !errors.Is(err, booking.ErrNotFound) {
		return nil, fmt.Errorf("get center: %w", err)
	}

	res := &model.EligibilityResult{}
	if err := booking.CheckEligibility(user, center); err != nil {
		res.Reason = string(booking.ReasonOf(err))
	} else {
		res.Eligible = true
	}

	if user != nil && user.IsRegistered() {
		res.RegisteredCenterID = user.RegisteredCenterID
		if center != nil && center.ID == user.RegisteredCenterID {
			res.RegisteredCenterTitle = center.Title
		} else if registered, err := s.centers.GetByID(ctx, user.RegisteredCenterID); err == nil {
			res.RegisteredCenterTitle = registered.Title
		}
	}
	return res, nil
}

// Register books a slot for userID at centerID. Eligibility is checked again
// by the store on locked state, so a stale "eligible" answer can never
// overbook a center.
func (s *BookingService) Register(ctx context.Context, userID, centerID string) (*model.Registration, error) {
	if userID == "" {
		return nil, booking.ErrUnauthenticated
	}
	if centerID == "" {
		return nil, booking.Invalid("center id is required")
	}

	reg, err := s.registrations.Book(ctx, userID, centerID, booking.CheckEligibility)
	if err != nil {
		if reason := booking.ReasonOf(err); reason != "" {
			log.Printf("register center=%s user=%s outcome=%s", centerID, userID, reason)
		}
		return nil, surface(err, "register")
	}
	log.Printf("register center=%s user=%s outcome=ok position=%d", centerID, userID, reg.Position)
	return reg, nil
}

// Availability returns the remaining slots of a center.
func (s *BookingService) Availability(ctx context.Context, centerID string) (*model.Availability, error) {
	center, err := s.GetCenter(ctx, centerID)
	if err != nil {
		return nil, err
	}
	a := booking.Project(center)
	return &a, nil
}

// ValidateList runs the duplicate guard over ids.
func (s *BookingService) ValidateList(ids []string) model.ListValidation {
	return booking.ValidateList(ids)
}

// ListRegistrants returns the registrant ids of a center in booking order.
func (s *BookingService) ListRegistrants(ctx context.Context, centerID string) ([]string, error) {
	if _, err := s.GetCenter(ctx, centerID); err != nil {
		return nil, err
	}
	ids, err := s.registrations.ListByCenter(ctx, centerID)
	if err != nil {
		return nil, surface(err, "list registrants")
	}
	return ids, nil
}

// surface returns booking outcomes unchanged so handlers can map them to
// status codes, and wraps anything else with context.
func surface(err error, op string) error {
	if booking.IsExpected(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
