package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/pkg/database"
)

// PostgresVerificationRepository implements VerificationRepository using PostgreSQL
type PostgresVerificationRepository struct {
	db *database.PostgresDB
}

// NewPostgresVerificationRepository creates a new PostgreSQL verification repository
func NewPostgresVerificationRepository(db *database.PostgresDB) *PostgresVerificationRepository {
	return &PostgresVerificationRepository{db: db}
}

// Upsert writes the verification for a trip, replacing any previous record.
// trip_id is the primary key so a re-issue can never create a second row.
func (r *PostgresVerificationRepository) Upsert(ctx context.Context, v *domain.TripVerification) error {
	query := `
		INSERT INTO trip_verifications (
			trip_id, otp, traveler_geohash, guide_geohash, verified,
			expires_at, verified_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (trip_id) DO UPDATE SET
			otp = EXCLUDED.otp,
			traveler_geohash = EXCLUDED.traveler_geohash,
			guide_geohash = EXCLUDED.guide_geohash,
			verified = EXCLUDED.verified,
			expires_at = EXCLUDED.expires_at,
			verified_at = EXCLUDED.verified_at,
			created_at = EXCLUDED.created_at`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		v.TripID,
		v.OTP,
		v.TravelerGeohash,
		nullString(v.GuideGeohash),
		v.Verified,
		v.ExpiresAt,
		v.VerifiedAt,
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert trip verification: %w", err)
	}
	return nil
}

// GetByTripID retrieves the verification for a trip
func (r *PostgresVerificationRepository) GetByTripID(ctx context.Context, tripID string) (*domain.TripVerification, error) {
	query := `
		SELECT trip_id, otp, traveler_geohash, guide_geohash, verified,
		       expires_at, verified_at, created_at
		FROM trip_verifications
		WHERE trip_id = $1`

	var v domain.TripVerification
	var guideGeohash *string

	err := r.db.Querier(ctx).QueryRow(ctx, query, tripID).Scan(
		&v.TripID,
		&v.OTP,
		&v.TravelerGeohash,
		&guideGeohash,
		&v.Verified,
		&v.ExpiresAt,
		&v.VerifiedAt,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to scan trip verification: %w", err)
	}

	v.GuideGeohash = derefString(guideGeohash)
	return &v, nil
}

// Update persists the verification's mutable fields
func (r *PostgresVerificationRepository) Update(ctx context.Context, v *domain.TripVerification) error {
	query := `
		UPDATE trip_verifications
		SET guide_geohash = $2, verified = $3, verified_at = $4
		WHERE trip_id = $1`

	tag, err := r.db.Querier(ctx).Exec(ctx, query,
		v.TripID,
		nullString(v.GuideGeohash),
		v.Verified,
		v.VerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update trip verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVerificationNotFound
	}
	return nil
}
