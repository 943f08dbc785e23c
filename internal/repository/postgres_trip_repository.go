package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/pkg/database"
)

// PostgresTripRepository implements TripRepository using PostgreSQL
type PostgresTripRepository struct {
	db *database.PostgresDB
}

// NewPostgresTripRepository creates a new PostgreSQL trip repository
func NewPostgresTripRepository(db *database.PostgresDB) *PostgresTripRepository {
	return &PostgresTripRepository{db: db}
}

const tripColumns = `
	id, traveler_id, guide_id, from_date, to_date, number_of_people,
	status, booking_status, daily_itinerary, needs_guide, created_at, updated_at
`

// Create inserts a new trip
func (r *PostgresTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		trip.ID,
		trip.TravelerID,
		nullString(trip.GuideID),
		trip.FromDate,
		trip.ToDate,
		trip.NumberOfPeople,
		string(trip.Status),
		string(trip.BookingStatus),
		[]byte(trip.DailyItinerary),
		trip.NeedsGuide,
		trip.CreatedAt,
		trip.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

// GetByID retrieves a trip by its ID
func (r *PostgresTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	return r.scanTrip(r.db.Querier(ctx).QueryRow(ctx, query, id))
}

// GetByIDForUpdate retrieves a trip and locks its row until commit
func (r *PostgresTripRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 FOR UPDATE`
	return r.scanTrip(r.db.Querier(ctx).QueryRow(ctx, query, id))
}

// Update persists the trip's mutable fields. Moving a trip to IN_PROGRESS can
// trip the one-in-progress-per-traveler unique index when a concurrent start
// won the race; that surfaces as ConcurrentTripError.
func (r *PostgresTripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	query := `
		UPDATE trips
		SET guide_id = $2, status = $3, booking_status = $4,
		    daily_itinerary = $5, needs_guide = $6, updated_at = $7
		WHERE id = $1`

	tag, err := r.db.Querier(ctx).Exec(ctx, query,
		trip.ID,
		nullString(trip.GuideID),
		string(trip.Status),
		string(trip.BookingStatus),
		[]byte(trip.DailyItinerary),
		trip.NeedsGuide,
		trip.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return &domain.ConcurrentTripError{}
		}
		return fmt.Errorf("failed to update trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTripNotFound
	}
	return nil
}

// FindInProgressByTraveler returns the traveler's IN_PROGRESS trip, if any.
// The lock serializes with a start that already holds such a row, but a
// zero-row result locks nothing; the unique index on in-progress trips
// catches that race at Update.
func (r *PostgresTripRepository) FindInProgressByTraveler(ctx context.Context, travelerID string) (*domain.Trip, error) {
	query := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE traveler_id = $1 AND status = 'IN_PROGRESS'
		LIMIT 1
		FOR UPDATE`

	trip, err := r.scanTrip(r.db.Querier(ctx).QueryRow(ctx, query, travelerID))
	if errors.Is(err, domain.ErrTripNotFound) {
		return nil, nil
	}
	return trip, err
}

// SetUserTripInProgress flips the denormalized per-user flag
func (r *PostgresTripRepository) SetUserTripInProgress(ctx context.Context, userID string, inProgress bool) error {
	query := `UPDATE users SET trip_in_progress = $2, updated_at = NOW() WHERE id = $1`

	_, err := r.db.Querier(ctx).Exec(ctx, query, userID, inProgress)
	if err != nil {
		return fmt.Errorf("failed to set trip_in_progress for user %s: %w", userID, err)
	}
	return nil
}

func (r *PostgresTripRepository) scanTrip(row pgx.Row) (*domain.Trip, error) {
	var t domain.Trip
	var guideID *string
	var itinerary []byte

	err := row.Scan(
		&t.ID,
		&t.TravelerID,
		&guideID,
		&t.FromDate,
		&t.ToDate,
		&t.NumberOfPeople,
		&t.Status,
		&t.BookingStatus,
		&itinerary,
		&t.NeedsGuide,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTripNotFound
		}
		return nil, fmt.Errorf("failed to scan trip: %w", err)
	}

	t.GuideID = derefString(guideID)
	t.DailyItinerary = itinerary
	return &t, nil
}
