package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/slot-booking/internal/booking"
	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
)

func seedMemory(t *testing.T, capacity int, users ...string) (*MemoryStore, *model.Center) {
	t.Helper()
	ctx := context.Background()
	store := NewMemoryStore()

	center := &model.Center{ID: "c1", Title: "Civil Hospital", Region: "north", Capacity: capacity, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Centers().Create(ctx, center))
	for _, id := range users {
		require.NoError(t, store.Users().Create(ctx, &model.User{ID: id, Name: id, Region: "north"}))
	}
	return store, center
}

func TestMemoryStore_BookLinksBothSides(t *testing.T) {
	ctx := context.Background()
	store, _ := seedMemory(t, 2, "a")

	reg, err := store.Registrations().Book(ctx, "a", "c1", booking.CheckEligibility)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Position)
	assert.Equal(t, []model.EntityRef{model.CenterRef("c1"), model.UserRef("a")}, reg.Invalidate)

	center, err := store.Centers().GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, center.RegisteredUsers)

	user, err := store.Users().GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "c1", user.RegisteredCenterID)
}

func TestMemoryStore_BookRejectedLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store, _ := seedMemory(t, 1, "a", "b")

	_, err := store.Registrations().Book(ctx, "a", "c1", booking.CheckEligibility)
	require.NoError(t, err)

	_, err = store.Registrations().Book(ctx, "b", "c1", booking.CheckEligibility)
	require.ErrorIs(t, err, booking.ErrCenterFull)

	user, err := store.Users().GetByID(ctx, "b")
	require.NoError(t, err)
	assert.False(t, user.IsRegistered())

	ids, err := store.Registrations().ListByCenter(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func TestMemoryStore_BookUnknownIDs(t *testing.T) {
	ctx := context.Background()
	store, _ := seedMemory(t, 1, "a")

	_, err := store.Registrations().Book(ctx, "ghost", "c1", booking.CheckEligibility)
	require.ErrorIs(t, err, booking.ErrNotFound)

	_, err = store.Registrations().Book(ctx, "a", "nowhere", booking.CheckEligibility)
	require.ErrorIs(t, err, booking.ErrNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store, _ := seedMemory(t, 2, "a")

	center, err := store.Centers().GetByID(ctx, "c1")
	require.NoError(t, err)
	center.RegisteredUsers = append(center.RegisteredUsers, "intruder")
	center.Capacity = 99

	again, err := store.Centers().GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, again.RegisteredUsers)
	assert.Equal(t, 2, again.Capacity)
}

func TestMemoryStore_ConcurrentBookingNeverOverbooks(t *testing.T) {
	ctx := context.Background()
	const capacity, attempts = 5, 50

	users := make([]string, attempts)
	for i := range users {
		users[i] = fmt.Sprintf("u%02d", i)
	}
	store, _ := seedMemory(t, capacity, users...)

	var wg sync.WaitGroup
	results := make(chan model.BookingResult, attempts)
	for _, id := range users {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := store.Registrations().Book(ctx, id, "c1", booking.CheckEligibility)
			results <- model.BookingResult{UserID: id, Success: err == nil, Error: err}
		}(id)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for r := range results {
		if r.Success {
			succeeded++
			continue
		}
		assert.ErrorIs(t, r.Error, booking.ErrCenterFull)
	}
	assert.Equal(t, capacity, succeeded)

	center, err := store.Centers().GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, center.RegisteredUsers, capacity)
	require.NoError(t, booking.ValidateNoDuplicates(center.RegisteredUsers))
}

func TestMemoryStore_AppendRegistrants(t *testing.T) {
	ctx := context.Background()
	store, _ := seedMemory(t, 3, "a", "b", "c")

	_, err := store.Registrations().Book(ctx, "a", "c1", booking.CheckEligibility)
	require.NoError(t, err)

	err = store.Registrations().AppendRegistrants(ctx, "c1", []string{"b", "c"}, booking.CheckAppend)
	require.NoError(t, err)

	ids, err := store.Registrations().ListByCenter(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	for _, id := range []string{"b", "c"} {
		u, err := store.Users().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "c1", u.RegisteredCenterID)
	}
}

func TestMemoryStore_AppendRegistrantsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store, _ := seedMemory(t, 3, "a", "b")

	err := store.Registrations().AppendRegistrants(ctx, "c1", []string{"a", "ghost"}, booking.CheckAppend)
	require.ErrorIs(t, err, booking.ErrNotFound)

	ids, err := store.Registrations().ListByCenter(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	u, err := store.Users().GetByID(ctx, "a")
	require.NoError(t, err)
	assert.False(t, u.IsRegistered())
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, store.Centers().Create(ctx, &model.Center{ID: id, Title: id, Region: "north", Capacity: 1}))
	}

	centers, err := store.Centers().List(ctx)
	require.NoError(t, err)
	require.Len(t, centers, 3)
	assert.Equal(t, "c3", centers[0].ID)
	assert.Equal(t, "c1", centers[2].ID)
}

func TestMemoryStore_UpdateDetailsKeepsCapacity(t *testing.T) {
	ctx := context.Background()
	store, _ := seedMemory(t, 4)

	c, err := store.Centers().UpdateDetails(ctx, "c1", "District Hospital", "south")
	require.NoError(t, err)
	assert.Equal(t, "District Hospital", c.Title)
	assert.Equal(t, "south", c.Region)
	assert.Equal(t, 4, c.Capacity)

	_, err = store.Centers().UpdateDetails(ctx, "missing", "x", "y")
	require.ErrorIs(t, err, booking.ErrNotFound)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	_, err := store.Registrations().Book(ctx, "a", "c1", booking.CheckEligibility)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLockOrder(t *testing.T) {
	assert.Equal(t, []int{1, 2, 0}, lockOrder([]string{"c", "a", "b"}))
	assert.Empty(t, lockOrder(nil))
}
