package booking

import "github.com/Shivanand-hulikatti/slot-booking/internal/model"

// RemainingSlots returns how many more users center can take. A center with
// no registrants reports its full capacity; the result never drops below zero.
func RemainingSlots(center *model.Center) int {
	if center == nil {
		return 0
	}
	count := center.Registered()
	if count == 0 {
		return center.Capacity
	}
	return max(center.Capacity-count, 0)
}

// Project builds the availability view of center.
func Project(center *model.Center) model.Availability {
	return model.Availability{
		CenterID:   center.ID,
		Capacity:   center.Capacity,
		Registered: center.Registered(),
		Remaining:  RemainingSlots(center),
	}
}
