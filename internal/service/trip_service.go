package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/internal/metrics"
	"github.com/roamly/roamly-core/internal/repository"
	"github.com/roamly/roamly-core/pkg/logger"
)

// tripServiceImpl implements TripService
type tripServiceImpl struct {
	tx            repository.TxManager
	trips         repository.TripRepository
	payments      repository.PaymentRepository
	verifications repository.VerificationRepository
	notifier      Notifier
	metrics       *metrics.Metrics
}

// NewTripService creates a new TripService
func NewTripService(
	tx repository.TxManager,
	trips repository.TripRepository,
	payments repository.PaymentRepository,
	verifications repository.VerificationRepository,
	notifier Notifier,
	m *metrics.Metrics,
) TripService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &tripServiceImpl{
		tx:            tx,
		trips:         trips,
		payments:      payments,
		verifications: verifications,
		notifier:      notifier,
		metrics:       m,
	}
}

// CreateTrip records a trip handed over by the itinerary generator
func (s *tripServiceImpl) CreateTrip(ctx context.Context, principal domain.Principal, req *CreateTripRequest) (*domain.Trip, error) {
	if principal.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	trip, err := domain.NewTrip(principal.UserID, req.FromDate, req.ToDate, req.NumberOfPeople, req.DailyItinerary, req.NeedsGuide)
	if err != nil {
		return nil, err
	}
	if err := s.trips.Create(ctx, trip); err != nil {
		return nil, err
	}
	return trip, nil
}

// GetTrip returns a trip visible to the caller
func (s *tripServiceImpl) GetTrip(ctx context.Context, principal domain.Principal, tripID string) (*domain.Trip, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !s.canView(principal, trip) {
		return nil, domain.ErrForbidden
	}
	return trip, nil
}

// AssignGuide binds a guide to a planning trip. Guides assign themselves;
// admins may assign anyone.
func (s *tripServiceImpl) AssignGuide(ctx context.Context, principal domain.Principal, tripID, guideID string) (*domain.Trip, error) {
	switch {
	case principal.Role == domain.RoleAdmin:
	case principal.Role == domain.RoleGuide && principal.UserID == guideID:
	default:
		return nil, domain.ErrForbidden
	}

	var trip *domain.Trip
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		trip, err = s.trips.GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if err := trip.AssignGuide(guideID); err != nil {
			return err
		}
		return s.trips.Update(ctx, trip)
	})
	if err != nil {
		return nil, err
	}
	return trip, nil
}

// ConfirmTrip moves a planning trip to CONFIRMED once the traveler accepts.
// A trip that wants a guide cannot confirm until one is assigned.
func (s *tripServiceImpl) ConfirmTrip(ctx context.Context, principal domain.Principal, tripID string) (*domain.Trip, error) {
	var trip *domain.Trip
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		trip, err = s.trips.GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !trip.IsOwnedBy(principal.UserID) {
			return domain.ErrForbidden
		}
		if trip.NeedsGuide && trip.GuideID == "" {
			return domain.ErrInvalidState
		}
		if err := trip.Confirm(); err != nil {
			return err
		}
		return s.trips.Update(ctx, trip)
	})
	if err != nil {
		return nil, err
	}
	return trip, nil
}

// StartTrip moves a CONFIRMED trip to IN_PROGRESS and mints the start
// verification. Preconditions run in a fixed order so each failure mode keeps
// a distinct error: ownership, state, payment, no other trip in progress.
func (s *tripServiceImpl) StartTrip(ctx context.Context, principal domain.Principal, tripID string, lat, lng float64) (*StartTripResult, error) {
	if principal.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	var (
		trip         *domain.Trip
		verification *domain.TripVerification
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		trip, err = s.trips.GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !trip.IsOwnedBy(principal.UserID) {
			return domain.ErrForbidden
		}
		if trip.Status != domain.TripStatusConfirmed {
			return domain.ErrInvalidState
		}

		if _, err := s.payments.GetPaidByTripID(ctx, tripID); err != nil {
			if errors.Is(err, domain.ErrPaymentNotFound) {
				return domain.ErrPaymentRequired
			}
			return err
		}

		conflict, err := s.trips.FindInProgressByTraveler(ctx, principal.UserID)
		if err != nil {
			return err
		}
		if conflict != nil && conflict.ID != trip.ID {
			return &domain.ConcurrentTripError{ConflictingTripID: conflict.ID}
		}

		if err := trip.Start(); err != nil {
			return err
		}
		if err := s.trips.Update(ctx, trip); err != nil {
			return err
		}
		if err := s.trips.SetUserTripInProgress(ctx, trip.TravelerID, true); err != nil {
			return err
		}
		if trip.GuideID != "" {
			if err := s.trips.SetUserTripInProgress(ctx, trip.GuideID, true); err != nil {
				return err
			}
		}

		verification, err = domain.NewTripVerification(tripID, lat, lng)
		if err != nil {
			return err
		}
		return s.verifications.Upsert(ctx, verification)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TripsStarted.Inc(ctx)
	s.notifier.TripStarted(ctx, trip)
	logger.Get().Info("trip started",
		zap.String("trip_id", trip.ID),
		zap.String("traveler_id", trip.TravelerID),
	)

	return &StartTripResult{
		OTP:       verification.OTP,
		ExpiresAt: verification.ExpiresAt,
		GuideID:   trip.GuideID,
	}, nil
}

// VerifyStart lets the assigned guide confirm the traveler's code at the
// meeting point
func (s *tripServiceImpl) VerifyStart(ctx context.Context, principal domain.Principal, tripID, code string, lat, lng float64) (*domain.TripVerification, error) {
	var verification *domain.TripVerification
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		trip, err := s.trips.GetByID(ctx, tripID)
		if err != nil {
			return err
		}
		if principal.UserID != trip.GuideID && principal.Role != domain.RoleAdmin {
			return domain.ErrForbidden
		}

		verification, err = s.verifications.GetByTripID(ctx, tripID)
		if err != nil {
			return err
		}
		if err := verification.Confirm(code, lat, lng, time.Now().UTC()); err != nil {
			return err
		}
		return s.verifications.Update(ctx, verification)
	})
	if err != nil {
		return nil, err
	}
	return verification, nil
}

// CompleteTrip ends an in-progress trip and clears the in-progress flags
func (s *tripServiceImpl) CompleteTrip(ctx context.Context, principal domain.Principal, tripID string) (*domain.Trip, error) {
	var trip *domain.Trip
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		trip, err = s.trips.GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !trip.IsOwnedBy(principal.UserID) && principal.UserID != trip.GuideID {
			return domain.ErrForbidden
		}
		if err := trip.Complete(); err != nil {
			return err
		}
		if err := s.trips.Update(ctx, trip); err != nil {
			return err
		}
		if err := s.trips.SetUserTripInProgress(ctx, trip.TravelerID, false); err != nil {
			return err
		}
		if trip.GuideID != "" {
			return s.trips.SetUserTripInProgress(ctx, trip.GuideID, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trip, nil
}

// CancelTrip cancels a trip that has not started
func (s *tripServiceImpl) CancelTrip(ctx context.Context, principal domain.Principal, tripID string) (*domain.Trip, error) {
	var trip *domain.Trip
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		trip, err = s.trips.GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !trip.IsOwnedBy(principal.UserID) && principal.Role != domain.RoleAdmin {
			return domain.ErrForbidden
		}
		if err := trip.Cancel(); err != nil {
			return err
		}
		return s.trips.Update(ctx, trip)
	})
	if err != nil {
		return nil, err
	}
	return trip, nil
}

func (s *tripServiceImpl) canView(principal domain.Principal, trip *domain.Trip) bool {
	return trip.IsOwnedBy(principal.UserID) ||
		principal.UserID == trip.GuideID ||
		principal.Role == domain.RoleAdmin
}
