// Package repository implements all database queries for the slot booking system.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shivanand-hulikatti/slot-booking/internal/booking"
	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
)

const tracerName = "slot-booking/repository"

// SQLSTATE codes that mean "the state moved underneath us, try again".
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const centerColumns = `id, title, region, capacity, created_at`

const userColumns = `id, name, region, COALESCE(registered_center_id, ''), created_at`

func scanCenter(row pgx.Row) (*model.Center, error) {
	var c model.Center
	if err := row.Scan(&c.ID, &c.Title, &c.Region, &c.Capacity, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Region, &u.RegisteredCenterID, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// listRegistrants returns the user ids registered at centerID in booking order.
func listRegistrants(ctx context.Context, q querier, centerID string) ([]string, error) {
	rows, err := q.Query(ctx,
		`SELECT user_id FROM center_registrations
		 WHERE center_id = $1
		 ORDER BY position ASC`,
		centerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrants: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan registrant: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
		return true
	}
	return false
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		if reason := booking.ReasonOf(err); reason != "" {
			span.SetAttributes(attribute.String("booking.outcome", string(reason)))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// CenterRepository handles persistence for centers.
type CenterRepository struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewCenterRepository constructs a CenterRepository.
func NewCenterRepository(db *pgxpool.Pool) *CenterRepository {
	return &CenterRepository{db: db, tracer: otel.Tracer(tracerName)}
}

// Create inserts a new center. Its registrant list always starts empty.
func (r *CenterRepository) Create(ctx context.Context, c *model.Center) (err error) {
	ctx, span := r.tracer.Start(ctx, "repository.center.create",
		trace.WithAttributes(attribute.String("center.id", c.ID), attribute.Int("center.capacity", c.Capacity)))
	defer func() { endSpan(span, err) }()

	_, err = r.db.Exec(ctx,
		`INSERT INTO centers (id, title, region, capacity, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Title, c.Region, c.Capacity, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert center: %w", err)
	}
	c.RegisteredUsers = []string{}
	return nil
}

// GetByID returns a single center with its registrants or booking.ErrNotFound.
func (r *CenterRepository) GetByID(ctx context.Context, id string) (c *model.Center, err error) {
	ctx, span := r.tracer.Start(ctx, "repository.center.get",
		trace.WithAttributes(attribute.String("center.id", id)))
	defer func() { endSpan(span, err) }()

	c, err = scanCenter(r.db.QueryRow(ctx,
		`SELECT `+centerColumns+` FROM centers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrNotFound
		}
		return nil, fmt.Errorf("get center: %w", err)
	}
	if c.RegisteredUsers, err = listRegistrants(ctx, r.db, id); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns all centers ordered by creation time descending.
func (r *CenterRepository) List(ctx context.Context) (centers []model.Center, err error) {
	ctx, span := r.tracer.Start(ctx, "repository.center.list")
	defer func() { endSpan(span, err) }()

	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.title, c.region, c.capacity, c.created_at,
		        COALESCE(array_agg(r.user_id ORDER BY r.position)
		                 FILTER (WHERE r.user_id IS NOT NULL), '{}')
		 FROM centers c
		 LEFT JOIN center_registrations r ON r.center_id = c.id
		 GROUP BY c.id
		 ORDER BY c.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list centers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Center
		if err := rows.Scan(&c.ID, &c.Title, &c.Region, &c.Capacity, &c.CreatedAt, &c.RegisteredUsers); err != nil {
			return nil, fmt.Errorf("scan center: %w", err)
		}
		centers = append(centers, c)
	}
	span.SetAttributes(attribute.Int("centers.count", len(centers)))
	return centers, rows.Err()
}

// UpdateDetails changes a center's title and region. Capacity is never
// written after creation.
func (r *CenterRepository) UpdateDetails(ctx context.Context, id, title, region string) (c *model.Center, err error) {
	ctx, span := r.tracer.Start(ctx, "repository.center.update_details",
		trace.WithAttributes(attribute.String("center.id", id)))
	defer func() { endSpan(span, err) }()

	tag, err := r.db.Exec(ctx,
		`UPDATE centers SET title = $2, region = $3 WHERE id = $1`,
		id, title, region,
	)
	if err != nil {
		return nil, fmt.Errorf("update center: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, booking.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// UserRepository handles persistence for users.
type UserRepository struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db, tracer: otel.Tracer(tracerName)}
}

// Create inserts a new user without a registered center.
func (r *UserRepository) Create(ctx context.Context, u *model.User) (err error) {
	ctx, span := r.tracer.Start(ctx, "repository.user.create",
		trace.WithAttributes(attribute.String("user.id", u.ID)))
	defer func() { endSpan(span, err) }()

	_, err = r.db.Exec(ctx,
		`INSERT INTO users (id, name, region, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Name, u.Region, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.RegisteredCenterID = ""
	return nil
}

// GetByID returns a single user or booking.ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (u *model.User, err error) {
	ctx, span := r.tracer.Start(ctx, "repository.user.get",
		trace.WithAttributes(attribute.String("user.id", id)))
	defer func() { endSpan(span, err) }()

	u, err = scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db          *pgxpool.Pool
	tracer      trace.Tracer
	maxAttempts int
}

// NewRegistrationRepository constructs a RegistrationRepository. maxAttempts
// bounds how often a booking is retried after a serialization failure.
func NewRegistrationRepository(db *pgxpool.Pool, maxAttempts int) *RegistrationRepository {
	return &RegistrationRepository{db: db, tracer: otel.Tracer(tracerName), maxAttempts: max(maxAttempts, 1)}
}

// Book performs a concurrency-safe registration inside a single transaction.
//
// Two requests racing for the last slot must not both commit. Both rows are
// locked with SELECT … FOR UPDATE, always user first and center second, so
// concurrent bookings for one center queue behind each other and re-read the
// registrant count only after the previous booking has committed. check runs
// on that locked state.
//
// Serialization failures, deadlocks and unique violations mean another
// transaction changed the rows first; the booking is retried on fresh state
// and surfaces booking.ErrConcurrentConflict once the attempts run out.
func (r *RegistrationRepository) Book(
	ctx context.Context,
	userID, centerID string,
	check func(*model.User, *model.Center) error,
) (reg *model.Registration, err error) {
	ctx, span := r.tracer.Start(ctx, "repository.registration.book",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("center.id", centerID),
		))
	defer func() { endSpan(span, err) }()

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		reg, err = r.book(ctx, userID, centerID, check)
		if err == nil {
			span.SetAttributes(attribute.Int("booking.attempts", attempt))
			return reg, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
		span.AddEvent("booking.retry", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("cause", err.Error()),
		))
	}
	return nil, fmt.Errorf("%w: %v", booking.ErrConcurrentConflict, lastErr)
}

func (r *RegistrationRepository) book(
	ctx context.Context,
	userID, centerID string,
	check func(*model.User, *model.Center) error,
) (*model.Registration, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	user, err := lockUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	center, err := lockCenter(ctx, tx, centerID)
	if err != nil {
		return nil, err
	}
	if err := check(user, center); err != nil {
		return nil, err
	}

	reg := &model.Registration{
		CenterID:  centerID,
		UserID:    userID,
		Position:  center.Registered() + 1,
		CreatedAt: time.Now().UTC(),
	}
	if err := insertRegistration(ctx, tx, reg); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	reg.Invalidate = []model.EntityRef{model.CenterRef(centerID), model.UserRef(userID)}
	return reg, nil
}

// AppendRegistrants adds userIDs to the end of the center's registrant list
// and links each user to the center, all in one transaction. check sees the
// locked center and users (nil for ids that do not resolve).
func (r *RegistrationRepository) AppendRegistrants(
	ctx context.Context,
	centerID string,
	userIDs []string,
	check func(*model.Center, []*model.User) error,
) (err error) {
	ctx, span := r.tracer.Start(ctx, "repository.registration.append",
		trace.WithAttributes(
			attribute.String("center.id", centerID),
			attribute.StringSlice("user.ids", userIDs),
		))
	defer func() { endSpan(span, err) }()

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = r.appendRegistrants(ctx, centerID, userIDs, check)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		span.AddEvent("append.retry", trace.WithAttributes(attribute.Int("attempt", attempt)))
	}
	return fmt.Errorf("%w: %v", booking.ErrConcurrentConflict, lastErr)
}

func (r *RegistrationRepository) appendRegistrants(
	ctx context.Context,
	centerID string,
	userIDs []string,
	check func(*model.Center, []*model.User) error,
) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Users before center, in a stable order, matching Book's lock order.
	users := make([]*model.User, len(userIDs))
	for _, i := range lockOrder(userIDs) {
		if users[i], err = lockUser(ctx, tx, userIDs[i]); err != nil {
			return err
		}
	}
	center, err := lockCenter(ctx, tx, centerID)
	if err != nil {
		return err
	}
	if err := check(center, users); err != nil {
		return err
	}

	now := time.Now().UTC()
	for i, id := range userIDs {
		reg := &model.Registration{
			CenterID:  centerID,
			UserID:    id,
			Position:  center.Registered() + i + 1,
			CreatedAt: now,
		}
		if err := insertRegistration(ctx, tx, reg); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListByCenter returns the ordered registrant ids of a center.
func (r *RegistrationRepository) ListByCenter(ctx context.Context, centerID string) (ids []string, err error) {
	ctx, span := r.tracer.Start(ctx, "repository.registration.list",
		trace.WithAttributes(attribute.String("center.id", centerID)))
	defer func() { endSpan(span, err) }()

	return listRegistrants(ctx, r.db, centerID)
}

// lockUser returns the locked user row, or nil if it does not exist.
func lockUser(ctx context.Context, tx pgx.Tx, id string) (*model.User, error) {
	u, err := scanUser(tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock user row: %w", err)
	}
	return u, nil
}

// lockCenter returns the locked center row with its registrants, or nil if
// it does not exist.
func lockCenter(ctx context.Context, tx pgx.Tx, id string) (*model.Center, error) {
	c, err := scanCenter(tx.QueryRow(ctx,
		`SELECT `+centerColumns+` FROM centers WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock center row: %w", err)
	}
	if c.RegisteredUsers, err = listRegistrants(ctx, tx, id); err != nil {
		return nil, err
	}
	return c, nil
}

// insertRegistration writes the registration row and links the user. The
// user update only matches an unregistered user, so a lost race can never
// move a user between centers.
func insertRegistration(ctx context.Context, tx pgx.Tx, reg *model.Registration) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO center_registrations (center_id, user_id, position, created_at)
		 VALUES ($1, $2, $3, $4)`,
		reg.CenterID, reg.UserID, reg.Position, reg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE users SET registered_center_id = $1
		 WHERE id = $2 AND registered_center_id IS NULL`,
		reg.CenterID, reg.UserID,
	)
	if err != nil {
		return fmt.Errorf("link user to center: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrAlreadyRegistered
	}
	return nil
}

// lockOrder returns the indexes of ids sorted by id, so that transactions
// locking several users always take the locks in the same order.
func lockOrder(ids []string) []int {
	idx := make([]int, len(ids))
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) int { return strings.Compare(ids[a], ids[b]) })
	return idx
}
