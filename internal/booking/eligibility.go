package booking

import (
	"strings"

	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
)

// RegionOf normalises a region identifier. An empty result means the entity
// has no region and can never be matched.
func RegionOf(region string) string {
	return strings.ToLower(strings.TrimSpace(region))
}

// SameRegion reports whether user and center share a non-empty region.
func SameRegion(user *model.User, center *model.Center) bool {
	r := RegionOf(user.Region)
	return r != "" && r == RegionOf(center.Region)
}

// CheckEligibility returns nil if user may register at center, otherwise the
// first failing condition in this order: ErrNotFound, ErrAlreadyRegistered,
// ErrRegionMismatch, ErrCenterFull.
//
// It only reads its arguments and is safe to call concurrently. The
// registration stores call it again on locked state before committing.
func CheckEligibility(user *model.User, center *model.Center) error {
	if user == nil || center == nil {
		return ErrNotFound
	}
	if user.IsRegistered() {
		return ErrAlreadyRegistered
	}
	if !SameRegion(user, center) {
		return ErrRegionMismatch
	}
	if center.Registered() >= center.Capacity {
		return ErrCenterFull
	}
	return nil
}

// IsEligible is the boolean form of CheckEligibility.
func IsEligible(user *model.User, center *model.Center) bool {
	return CheckEligibility(user, center) == nil
}

// CheckAppend validates an administrative append of users to center, run on
// locked state by the stores. Region is not checked: administrators may place
// users in any center, as long as capacity and one-center-per-user hold.
func CheckAppend(center *model.Center, users []*model.User) error {
	if center == nil {
		return ErrNotFound
	}
	for _, u := range users {
		if u == nil {
			return ErrNotFound
		}
		if center.HasRegistrant(u.ID) {
			return &DuplicateEntryError{ID: u.ID}
		}
		if u.IsRegistered() {
			return ErrAlreadyRegistered
		}
	}
	if count := center.Registered() + len(users); count > center.Capacity {
		return &OverCapacityError{Count: count, Capacity: center.Capacity}
	}
	return nil
}
