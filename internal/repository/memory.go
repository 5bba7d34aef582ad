package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/slot-booking/internal/booking"
	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
)

// MemoryStore keeps centers, users and registrations in process memory.
// One mutex guards all three, so a booking's check and apply form a single
// atomic step exactly like the row-locked transaction in Book.
type MemoryStore struct {
	mu      sync.Mutex
	centers map[string]*model.Center
	users   map[string]*model.User
	order   []string // center ids in creation order
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		centers: make(map[string]*model.Center),
		users:   make(map[string]*model.User),
	}
}

// Centers returns the center view of the store.
func (s *MemoryStore) Centers() *MemoryCenters { return &MemoryCenters{s: s} }

// Users returns the user view of the store.
func (s *MemoryStore) Users() *MemoryUsers { return &MemoryUsers{s: s} }

// Registrations returns the registration view of the store.
func (s *MemoryStore) Registrations() *MemoryRegistrations { return &MemoryRegistrations{s: s} }

func cloneCenter(c *model.Center) *model.Center {
	out := *c
	out.RegisteredUsers = slices.Clone(c.RegisteredUsers)
	if out.RegisteredUsers == nil {
		out.RegisteredUsers = []string{}
	}
	return &out
}

func cloneUser(u *model.User) *model.User {
	out := *u
	return &out
}

// lookup returns copies of the stored user and center, nil where absent.
// Callers must hold s.mu.
func (s *MemoryStore) lookup(userID, centerID string) (*model.User, *model.Center) {
	var user *model.User
	var center *model.Center
	if u, ok := s.users[userID]; ok {
		user = cloneUser(u)
	}
	if c, ok := s.centers[centerID]; ok {
		center = cloneCenter(c)
	}
	return user, center
}

// MemoryCenters implements center persistence over a MemoryStore.
type MemoryCenters struct{ s *MemoryStore }

// Create stores a new center with an empty registrant list.
func (r *MemoryCenters) Create(ctx context.Context, c *model.Center) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.centers[c.ID]; ok {
		return booking.Invalid("center %s already exists", c.ID)
	}
	c.RegisteredUsers = []string{}
	r.s.centers[c.ID] = cloneCenter(c)
	r.s.order = append(r.s.order, c.ID)
	return nil
}

// GetByID returns a copy of the center or booking.ErrNotFound.
func (r *MemoryCenters) GetByID(ctx context.Context, id string) (*model.Center, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.centers[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return cloneCenter(c), nil
}

// List returns all centers, newest first.
func (r *MemoryCenters) List(ctx context.Context) ([]model.Center, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	centers := make([]model.Center, 0, len(r.s.order))
	for i := len(r.s.order) - 1; i >= 0; i-- {
		centers = append(centers, *cloneCenter(r.s.centers[r.s.order[i]]))
	}
	return centers, nil
}

// UpdateDetails changes title and region only.
func (r *MemoryCenters) UpdateDetails(ctx context.Context, id, title, region string) (*model.Center, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.centers[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	c.Title = title
	c.Region = region
	return cloneCenter(c), nil
}

// MemoryUsers implements user persistence over a MemoryStore.
type MemoryUsers struct{ s *MemoryStore }

// Create stores a new user with no registered center.
func (r *MemoryUsers) Create(ctx context.Context, u *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[u.ID]; ok {
		return booking.Invalid("user %s already exists", u.ID)
	}
	u.RegisteredCenterID = ""
	r.s.users[u.ID] = cloneUser(u)
	return nil
}

// GetByID returns a copy of the user or booking.ErrNotFound.
func (r *MemoryUsers) GetByID(ctx context.Context, id string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return cloneUser(u), nil
}

// MemoryRegistrations implements the registration command over a MemoryStore.
type MemoryRegistrations struct{ s *MemoryStore }

// Book runs check against the current state and, if it passes, appends the
// user to the center and links the user to it, all under the store mutex.
func (r *MemoryRegistrations) Book(
	ctx context.Context,
	userID, centerID string,
	check func(*model.User, *model.Center) error,
) (*model.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, center := r.s.lookup(userID, centerID)
	if err := check(user, center); err != nil {
		return nil, err
	}

	stored := r.s.centers[centerID]
	stored.RegisteredUsers = append(stored.RegisteredUsers, userID)
	r.s.users[userID].RegisteredCenterID = centerID

	return &model.Registration{
		CenterID:   centerID,
		UserID:     userID,
		Position:   len(stored.RegisteredUsers),
		CreatedAt:  time.Now().UTC(),
		Invalidate: []model.EntityRef{model.CenterRef(centerID), model.UserRef(userID)},
	}, nil
}

// AppendRegistrants adds userIDs to the center after check approves the
// current state.
func (r *MemoryRegistrations) AppendRegistrants(
	ctx context.Context,
	centerID string,
	userIDs []string,
	check func(*model.Center, []*model.User) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var center *model.Center
	if c, ok := r.s.centers[centerID]; ok {
		center = cloneCenter(c)
	}
	users := make([]*model.User, len(userIDs))
	for i, id := range userIDs {
		if u, ok := r.s.users[id]; ok {
			users[i] = cloneUser(u)
		}
	}
	if err := check(center, users); err != nil {
		return err
	}

	stored := r.s.centers[centerID]
	for _, id := range userIDs {
		stored.RegisteredUsers = append(stored.RegisteredUsers, id)
		r.s.users[id].RegisteredCenterID = centerID
	}
	return nil
}

// ListByCenter returns the ordered registrant ids of a center.
func (r *MemoryRegistrations) ListByCenter(ctx context.Context, centerID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.centers[centerID]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return slices.Clone(c.RegisteredUsers), nil
}
