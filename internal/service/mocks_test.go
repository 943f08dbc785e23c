package service

import (
	"context"
	"sync"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/internal/metrics"
)

// memTxManager serializes transactions with a mutex. Get methods hand out
// copies and Update applies them, so uncommitted mutations never leak into
// the stores.
type memTxManager struct {
	mu sync.Mutex
}

func (m *memTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

// MockPaymentRepository is an in-memory PaymentRepository
type MockPaymentRepository struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[string]*domain.Payment)}
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *payment
	m.payments[payment.ID] = &cp
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error) {
	return m.GetByID(ctx, id)
}

func (m *MockPaymentRepository) GetByGatewaySessionIDForUpdate(ctx context.Context, sessionID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.GatewaySessionID == sessionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *MockPaymentRepository) GetPaidByTripID(ctx context.Context, tripID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.TripID == tripID && p.Status == domain.PaymentStatusPaid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *MockPaymentRepository) GetLatestByTripID(ctx context.Context, tripID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Payment
	for _, p := range m.payments {
		if p.TripID == tripID && (latest == nil || p.CreatedAt.After(latest.CreatedAt)) {
			latest = p
		}
	}
	if latest == nil {
		return nil, domain.ErrPaymentNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	cp := *payment
	m.payments[payment.ID] = &cp
	return nil
}

// MockEventRepository is an in-memory EventRepository. It shares the payment
// store so AvailableTickets can subtract pending reservations the way the
// SQL join does.
type MockEventRepository struct {
	mu        sync.Mutex
	events    map[string]*domain.Event
	tickets   map[string]*domain.EventTicket // keyed by payment id
	payments  *MockPaymentRepository
	ticketErr error
}

func NewMockEventRepository(payments *MockPaymentRepository) *MockEventRepository {
	return &MockEventRepository{
		events:   make(map[string]*domain.Event),
		tickets:  make(map[string]*domain.EventTicket),
		payments: payments,
	}
}

func (m *MockEventRepository) AddEvent(event *domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	m.events[event.ID] = &cp
}

func (m *MockEventRepository) Create(ctx context.Context, event *domain.Event) error {
	m.AddEvent(event)
	return nil
}

func (m *MockEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MockEventRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Event, error) {
	return m.GetByID(ctx, id)
}

func (m *MockEventRepository) AvailableTickets(ctx context.Context, eventID string) (int, error) {
	m.mu.Lock()
	e, ok := m.events[eventID]
	if !ok {
		m.mu.Unlock()
		return 0, domain.ErrEventNotFound
	}
	available := e.TicketCount
	m.mu.Unlock()

	m.payments.mu.Lock()
	defer m.payments.mu.Unlock()
	for _, p := range m.payments.payments {
		if p.EventID == eventID && p.Status == domain.PaymentStatusPending {
			available -= p.TicketQuantity
		}
	}
	return available, nil
}

func (m *MockEventRepository) DecrementTickets(ctx context.Context, eventID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	if e.TicketCount < quantity {
		return domain.ErrInsufficientInventory
	}
	e.TicketCount -= quantity
	return nil
}

func (m *MockEventRepository) RestoreTickets(ctx context.Context, eventID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	e.TicketCount += quantity
	return nil
}

func (m *MockEventRepository) CreateTicket(ctx context.Context, ticket *domain.EventTicket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticketErr != nil {
		return m.ticketErr
	}
	if _, ok := m.tickets[ticket.PaymentID]; ok {
		return domain.ErrPaymentAlreadyPaid
	}
	cp := *ticket
	m.tickets[ticket.PaymentID] = &cp
	return nil
}

func (m *MockEventRepository) GetTicketByPaymentID(ctx context.Context, paymentID string) (*domain.EventTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[paymentID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockEventRepository) TicketCount(eventID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[eventID]; ok {
		return e.TicketCount
	}
	return -1
}

// MockTripRepository is an in-memory TripRepository. Update enforces the
// store's one-in-progress-trip-per-traveler uniqueness rule.
type MockTripRepository struct {
	mu    sync.Mutex
	trips map[string]*domain.Trip
	flags map[string]bool

	// blindConflictScan makes FindInProgressByTraveler see nothing, the way
	// the real query does while a concurrent start is still uncommitted
	blindConflictScan bool
}

func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
		flags: make(map[string]bool),
	}
}

func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *trip
	m.trips[trip.ID] = &cp
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	m.AddTrip(trip)
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, domain.ErrTripNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTripRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	return m.GetByID(ctx, id)
}

func (m *MockTripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[trip.ID]; !ok {
		return domain.ErrTripNotFound
	}
	if trip.Status == domain.TripStatusInProgress {
		for _, t := range m.trips {
			if t.ID != trip.ID && t.TravelerID == trip.TravelerID && t.Status == domain.TripStatusInProgress {
				return &domain.ConcurrentTripError{}
			}
		}
	}
	cp := *trip
	m.trips[trip.ID] = &cp
	return nil
}

func (m *MockTripRepository) FindInProgressByTraveler(ctx context.Context, travelerID string) (*domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blindConflictScan {
		return nil, nil
	}
	for _, t := range m.trips {
		if t.TravelerID == travelerID && t.Status == domain.TripStatusInProgress {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockTripRepository) SetUserTripInProgress(ctx context.Context, userID string, inProgress bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[userID] = inProgress
	return nil
}

func (m *MockTripRepository) TripInProgress(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[userID]
}

// MockVerificationRepository is an in-memory VerificationRepository
type MockVerificationRepository struct {
	mu            sync.Mutex
	verifications map[string]*domain.TripVerification
}

func NewMockVerificationRepository() *MockVerificationRepository {
	return &MockVerificationRepository{verifications: make(map[string]*domain.TripVerification)}
}

func (m *MockVerificationRepository) Upsert(ctx context.Context, v *domain.TripVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.verifications[v.TripID] = &cp
	return nil
}

func (m *MockVerificationRepository) GetByTripID(ctx context.Context, tripID string) (*domain.TripVerification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.verifications[tripID]
	if !ok {
		return nil, domain.ErrVerificationNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MockVerificationRepository) Update(ctx context.Context, v *domain.TripVerification) error {
	return m.Upsert(ctx, v)
}

// recordingNotifier counts notifications
type recordingNotifier struct {
	mu        sync.Mutex
	confirmed int
	expired   int
	started   int
}

func (n *recordingNotifier) PaymentConfirmed(ctx context.Context, p *domain.Payment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed++
}

func (n *recordingNotifier) PaymentExpired(ctx context.Context, p *domain.Payment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired++
}

func (n *recordingNotifier) TripStarted(ctx context.Context, t *domain.Trip) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started++
}

func testMetrics() *metrics.Metrics {
	m, err := metrics.New()
	if err != nil {
		panic(err)
	}
	return m
}
