package booking

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
)

func newCenter(capacity int, region string, registered ...string) *model.Center {
	return &model.Center{ID: "center-1", Title: "City Hospital", Region: region, Capacity: capacity, RegisteredUsers: registered}
}

func newUser(id, region string) *model.User {
	return &model.User{ID: id, Name: id, Region: region}
}

// === Eligibility ===

func TestCheckEligibility(t *testing.T) {
	tests := []struct {
		name   string
		user   *model.User
		center *model.Center
		want   error
	}{
		{"eligible", newUser("a", "north"), newCenter(2, "north"), nil},
		{"nil user", nil, newCenter(2, "north"), ErrNotFound},
		{"nil center", newUser("a", "north"), nil, ErrNotFound},
		{"registered elsewhere", &model.User{ID: "a", Region: "north", RegisteredCenterID: "other"}, newCenter(2, "north"), ErrAlreadyRegistered},
		{"registered here", &model.User{ID: "a", Region: "north", RegisteredCenterID: "center-1"}, newCenter(2, "north", "a"), ErrAlreadyRegistered},
		{"region mismatch", newUser("f", "north"), newCenter(2, "south"), ErrRegionMismatch},
		{"user without region", newUser("a", " "), newCenter(2, ""), ErrRegionMismatch},
		{"exactly full", newUser("c", "north"), newCenter(2, "north", "a", "b"), ErrCenterFull},
		{"zero capacity", newUser("c", "north"), newCenter(0, "north"), ErrCenterFull},
		{"region compared case-insensitively", newUser("a", " North "), newCenter(1, "north"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckEligibility(tt.user, tt.center)
			if tt.want == nil {
				require.NoError(t, err)
				assert.True(t, IsEligible(tt.user, tt.center))
				return
			}
			require.ErrorIs(t, err, tt.want)
			assert.False(t, IsEligible(tt.user, tt.center))
		})
	}
}

func TestCheckEligibility_AlreadyRegisteredWinsOverFull(t *testing.T) {
	user := &model.User{ID: "a", Region: "south", RegisteredCenterID: "x"}
	err := CheckEligibility(user, newCenter(1, "north", "b"))
	require.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestCheckAppend(t *testing.T) {
	center := newCenter(3, "north", "a")

	require.NoError(t, CheckAppend(center, []*model.User{newUser("b", "south"), newUser("c", "north")}))

	err := CheckAppend(center, []*model.User{newUser("b", ""), newUser("c", ""), newUser("d", "")})
	require.ErrorIs(t, err, ErrOverCapacity)

	err = CheckAppend(center, []*model.User{{ID: "b", RegisteredCenterID: "other"}})
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	err = CheckAppend(center, []*model.User{newUser("a", "north")})
	require.ErrorIs(t, err, ErrDuplicateEntry)

	require.ErrorIs(t, CheckAppend(center, []*model.User{nil}), ErrNotFound)
	require.ErrorIs(t, CheckAppend(nil, nil), ErrNotFound)
}

// === Availability ===

func TestRemainingSlots(t *testing.T) {
	assert.Equal(t, 2, RemainingSlots(newCenter(2, "north")))
	assert.Equal(t, 1, RemainingSlots(newCenter(2, "north", "a")))
	assert.Equal(t, 0, RemainingSlots(newCenter(2, "north", "a", "b")))
	assert.Equal(t, 0, RemainingSlots(newCenter(1, "north", "a", "b", "c")), "floored at zero")
	assert.Equal(t, 0, RemainingSlots(nil))
}

func TestProject(t *testing.T) {
	got := Project(newCenter(5, "north", "a", "b"))
	assert.Equal(t, model.Availability{CenterID: "center-1", Capacity: 5, Registered: 2, Remaining: 3}, got)
}

func TestProperty_RemainingSlotsMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(0, 50).Draw(t, "capacity")
		n := rapid.IntRange(0, 60).Draw(t, "registrants")

		center := newCenter(capacity, "north")
		prev := RemainingSlots(center)
		if prev != capacity {
			t.Fatalf("empty center should report full capacity %d, got %d", capacity, prev)
		}
		for i := 0; i < n; i++ {
			center.RegisteredUsers = append(center.RegisteredUsers, fmt.Sprintf("user-%d", i))
			cur := RemainingSlots(center)
			if cur < 0 {
				t.Fatalf("remaining went negative: %d", cur)
			}
			if cur > prev {
				t.Fatalf("remaining grew from %d to %d", prev, cur)
			}
			prev = cur
		}
	})
}

// === Duplicate guard ===

func TestValidateNoDuplicates(t *testing.T) {
	require.NoError(t, ValidateNoDuplicates([]string{"1", "2", "3"}))
	require.NoError(t, ValidateNoDuplicates(nil))
	require.NoError(t, ValidateNoDuplicates([]string{"1", "", "", "2"}), "empty rows are ignored")

	err := ValidateNoDuplicates([]string{"1", "2", "2"})
	require.ErrorIs(t, err, ErrDuplicateEntry)
	var dup *DuplicateEntryError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "2", dup.ID)

	err = ValidateNoDuplicates([]string{"3", "1", "2", "1", "3"})
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "1", dup.ID, "first repeated id is reported")
}

func TestValidateList(t *testing.T) {
	assert.Equal(t, model.ListValidation{OK: true}, ValidateList([]string{"1", "2", "3"}))
	assert.Equal(t, model.ListValidation{OK: false, DuplicateID: "2"}, ValidateList([]string{"1", "2", "2"}))
}

func TestProperty_DuplicateGuardMatchesSetSize(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOf(rapid.StringMatching(`[a-c][0-2]`)).Draw(t, "ids")

		unique := make(map[string]struct{})
		for _, id := range ids {
			unique[id] = struct{}{}
		}
		err := ValidateNoDuplicates(ids)
		if len(unique) == len(ids) && err != nil {
			t.Fatalf("unique list %v rejected: %v", ids, err)
		}
		if len(unique) != len(ids) && !errors.Is(err, ErrDuplicateEntry) {
			t.Fatalf("list %v with repeats accepted", ids)
		}
	})
}

func TestValidateRegistrantEdit(t *testing.T) {
	center := newCenter(3, "north", "a")

	added, err := ValidateRegistrantEdit(center, []string{"a", "b", "", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, added)

	added, err = ValidateRegistrantEdit(center, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, added)

	_, err = ValidateRegistrantEdit(center, []string{"a", "b", "b"})
	require.ErrorIs(t, err, ErrDuplicateEntry)

	_, err = ValidateRegistrantEdit(center, []string{"a", "b", "c", "d"})
	require.ErrorIs(t, err, ErrOverCapacity)
	assert.Contains(t, err.Error(), "only 3 users")

	_, err = ValidateRegistrantEdit(center, []string{"b"})
	require.ErrorIs(t, err, ErrRegistrantRemoved)

	_, err = ValidateRegistrantEdit(nil, []string{"b"})
	require.ErrorIs(t, err, ErrNotFound)
}

// === Reasons ===

func TestReasonOf(t *testing.T) {
	assert.Equal(t, ReasonCenterFull, ReasonOf(ErrCenterFull))
	assert.Equal(t, ReasonNotFound, ReasonOf(fmt.Errorf("load center: %w", ErrNotFound)))
	assert.Equal(t, ReasonDuplicateEntry, ReasonOf(&DuplicateEntryError{ID: "x"}))
	assert.Equal(t, ReasonOverCapacity, ReasonOf(&OverCapacityError{Count: 3, Capacity: 2}))
	assert.Equal(t, ReasonInvalidInput, ReasonOf(Invalid("title is required")))
	assert.Equal(t, ReasonRateLimited, ReasonOf(ErrRateLimited))
	assert.Equal(t, Reason(""), ReasonOf(errors.New("connection refused")))
	assert.Equal(t, Reason(""), ReasonOf(nil))

	assert.True(t, IsExpected(ErrConcurrentConflict))
	assert.False(t, IsExpected(errors.New("boom")))
}
