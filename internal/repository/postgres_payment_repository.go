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

// PostgreSQL error code for unique violation
const pgUniqueViolationCode = "23505"

// PostgresPaymentRepository implements PaymentRepository using PostgreSQL
type PostgresPaymentRepository struct {
	db *database.PostgresDB
}

// NewPostgresPaymentRepository creates a new PostgreSQL payment repository
func NewPostgresPaymentRepository(db *database.PostgresDB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

const paymentColumns = `
	id, trip_id, event_id, traveler_id, ticket_quantity, amount, status,
	gateway_session_id, paid_at, created_at, updated_at
`

// Create creates a new payment record
func (r *PostgresPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		payment.ID,
		nullString(payment.TripID),
		nullString(payment.EventID),
		payment.TravelerID,
		payment.TicketQuantity,
		payment.Amount,
		string(payment.Status),
		nullString(payment.GatewaySessionID),
		payment.PaidAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return domain.ErrDuplicateGatewaySession
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment by its ID
func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.scanPayment(r.db.Querier(ctx).QueryRow(ctx, query, id))
}

// GetByIDForUpdate retrieves a payment and locks its row until commit
func (r *PostgresPaymentRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return r.scanPayment(r.db.Querier(ctx).QueryRow(ctx, query, id))
}

// GetByGatewaySessionIDForUpdate resolves an inbound webhook session id to its
// payment, locking the row so concurrent deliveries serialize
func (r *PostgresPaymentRepository) GetByGatewaySessionIDForUpdate(ctx context.Context, sessionID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_session_id = $1 FOR UPDATE`
	return r.scanPayment(r.db.Querier(ctx).QueryRow(ctx, query, sessionID))
}

// GetPaidByTripID returns the PAID payment for a trip
func (r *PostgresPaymentRepository) GetPaidByTripID(ctx context.Context, tripID string) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE trip_id = $1 AND status = 'paid'
		ORDER BY created_at DESC
		LIMIT 1`
	return r.scanPayment(r.db.Querier(ctx).QueryRow(ctx, query, tripID))
}

// GetLatestByTripID returns the most recent payment for a trip in any status
func (r *PostgresPaymentRepository) GetLatestByTripID(ctx context.Context, tripID string) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE trip_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	return r.scanPayment(r.db.Querier(ctx).QueryRow(ctx, query, tripID))
}

// Update persists the payment's mutable fields
func (r *PostgresPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $2, gateway_session_id = $3, paid_at = $4, updated_at = $5
		WHERE id = $1`

	tag, err := r.db.Querier(ctx).Exec(ctx, query,
		payment.ID,
		string(payment.Status),
		nullString(payment.GatewaySessionID),
		payment.PaidAt,
		payment.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return domain.ErrDuplicateGatewaySession
		}
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *PostgresPaymentRepository) scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var tripID, eventID, sessionID *string
	err := row.Scan(
		&p.ID,
		&tripID,
		&eventID,
		&p.TravelerID,
		&p.TicketQuantity,
		&p.Amount,
		&p.Status,
		&sessionID,
		&p.PaidAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	p.TripID = derefString(tripID)
	p.EventID = derefString(eventID)
	p.GatewaySessionID = derefString(sessionID)
	return &p, nil
}

// nullString returns nil if string is empty, otherwise returns pointer to string
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
