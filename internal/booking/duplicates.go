package booking

import "github.com/Shivanand-hulikatti/slot-booking/internal/model"

// ValidateNoDuplicates fails with a *DuplicateEntryError naming the first id
// that appears a second time. Empty ids are skipped, matching an unfilled
// reference row.
func ValidateNoDuplicates(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			return &DuplicateEntryError{ID: id}
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ValidateList is the result-value form of ValidateNoDuplicates.
func ValidateList(ids []string) model.ListValidation {
	err := ValidateNoDuplicates(ids)
	if err == nil {
		return model.ListValidation{OK: true}
	}
	dup := err.(*DuplicateEntryError)
	return model.ListValidation{OK: false, DuplicateID: dup.ID}
}

// ValidateRegistrantEdit checks a manually edited registrant list for center
// and returns the ids it adds, in list order.
//
// The list must be free of duplicates, fit within capacity and keep every
// existing registrant.
func ValidateRegistrantEdit(center *model.Center, proposed []string) ([]string, error) {
	if center == nil {
		return nil, ErrNotFound
	}
	if err := ValidateNoDuplicates(proposed); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(proposed))
	for _, id := range proposed {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) > center.Capacity {
		return nil, &OverCapacityError{Count: len(ids), Capacity: center.Capacity}
	}

	kept := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		kept[id] = struct{}{}
	}
	for _, existing := range center.RegisteredUsers {
		if _, ok := kept[existing]; !ok {
			return nil, ErrRegistrantRemoved
		}
	}

	var added []string
	for _, id := range ids {
		if !center.HasRegistrant(id) {
			added = append(added, id)
		}
	}
	return added, nil
}
