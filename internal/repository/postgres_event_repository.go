package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/pkg/database"
	"github.com/roamly/roamly-core/pkg/telemetry"
)

// PostgresEventRepository implements EventRepository using PostgreSQL
type PostgresEventRepository struct {
	db *database.PostgresDB
}

// NewPostgresEventRepository creates a new PostgreSQL event repository
func NewPostgresEventRepository(db *database.PostgresDB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

const eventColumns = `
	id, name, description, location, price, ticket_count, start_at, created_at, updated_at
`

// Create inserts a new event
func (r *PostgresEventRepository) Create(ctx context.Context, event *domain.Event) error {
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		event.ID,
		event.Name,
		event.Description,
		event.Location,
		event.Price,
		event.TicketCount,
		event.StartAt,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// GetByID retrieves an event by its ID
func (r *PostgresEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return r.scanEvent(r.db.Querier(ctx).QueryRow(ctx, query, id))
}

// GetByIDForUpdate retrieves an event and locks its row until commit. Both the
// purchase flow and the webhook reconciler go through this lock so inventory
// reads and writes serialize on the same row.
func (r *PostgresEventRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	return r.scanEvent(r.db.Querier(ctx).QueryRow(ctx, query, id))
}

// AvailableTickets returns the remaining inventory minus quantities held by
// pending payments. Pending payments act as reservations so two concurrent
// purchases cannot both claim the last ticket while neither has paid yet.
func (r *PostgresEventRepository) AvailableTickets(ctx context.Context, eventID string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.event.available_tickets")
	defer span.End()
	span.SetAttributes(attribute.String("event_id", eventID))

	query := `
		SELECT e.ticket_count - COALESCE(SUM(p.ticket_quantity), 0)
		FROM events e
		LEFT JOIN payments p ON p.event_id = e.id AND p.status = 'pending'
		WHERE e.id = $1
		GROUP BY e.ticket_count`

	var available int
	err := r.db.Querier(ctx).QueryRow(ctx, query, eventID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrEventNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to compute available tickets: %w", err)
	}
	return available, nil
}

// DecrementTickets subtracts quantity from the event's inventory. The WHERE
// clause makes the check-and-decrement a single atomic statement.
func (r *PostgresEventRepository) DecrementTickets(ctx context.Context, eventID string, quantity int) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.event.decrement_tickets")
	defer span.End()
	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.Int("quantity", quantity),
	)

	query := `
		UPDATE events
		SET ticket_count = ticket_count - $2, updated_at = NOW()
		WHERE id = $1 AND ticket_count >= $2`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, eventID, quantity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to decrement tickets: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientInventory
	}
	return nil
}

// RestoreTickets returns quantity to the event's inventory
func (r *PostgresEventRepository) RestoreTickets(ctx context.Context, eventID string, quantity int) error {
	query := `
		UPDATE events
		SET ticket_count = ticket_count + $2, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, eventID, quantity)
	if err != nil {
		return fmt.Errorf("failed to restore tickets: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// CreateTicket inserts the receipt for a confirmed payment. The unique index
// on payment_id guarantees at most one ticket per payment.
func (r *PostgresEventRepository) CreateTicket(ctx context.Context, ticket *domain.EventTicket) error {
	query := `
		INSERT INTO event_tickets (id, event_id, traveler_id, payment_id, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		ticket.ID,
		ticket.EventID,
		ticket.TravelerID,
		ticket.PaymentID,
		ticket.Quantity,
		ticket.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return domain.ErrPaymentAlreadyPaid
		}
		return fmt.Errorf("failed to create event ticket: %w", err)
	}
	return nil
}

// GetTicketByPaymentID retrieves the ticket issued for a payment
func (r *PostgresEventRepository) GetTicketByPaymentID(ctx context.Context, paymentID string) (*domain.EventTicket, error) {
	query := `
		SELECT id, event_id, traveler_id, payment_id, quantity, created_at
		FROM event_tickets
		WHERE payment_id = $1`

	var t domain.EventTicket
	err := r.db.Querier(ctx).QueryRow(ctx, query, paymentID).Scan(
		&t.ID, &t.EventID, &t.TravelerID, &t.PaymentID, &t.Quantity, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event ticket: %w", err)
	}
	return &t, nil
}

func (r *PostgresEventRepository) scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.Description,
		&e.Location,
		&e.Price,
		&e.TicketCount,
		&e.StartAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	return &e, nil
}
