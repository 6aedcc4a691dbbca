package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/library-seat-reservation/internal/model"
)

// CreateSeat adds a seat.  An existing code yields repository.ErrConflict.
func (s *ReservationService) CreateSeat(ctx context.Context, seat model.Seat) (*model.Seat, error) {
	if err := s.seats.Create(ctx, &seat); err != nil {
		return nil, err
	}
	s.cache.Bump(ctx)
	s.log.Info("seat created", zap.String("seat_id", seat.ID))
	return s.seats.GetByID(ctx, seat.ID)
}

// UpdateSeat changes the fields that are non-nil.  An empty otherInfo
// clears the note.
func (s *ReservationService) UpdateSeat(ctx context.Context, id string, available *bool, otherInfo *string) (*model.Seat, error) {
	seat, err := s.seats.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if available != nil {
		seat.Available = *available
	}
	if otherInfo != nil {
		seat.OtherInfo = otherInfo
		if *otherInfo == "" {
			seat.OtherInfo = nil
		}
	}
	if err := s.seats.Update(ctx, id, seat.Available, seat.OtherInfo); err != nil {
		return nil, err
	}
	s.cache.Bump(ctx)
	s.log.Info("seat updated", zap.String("seat_id", id), zap.Bool("available", seat.Available))
	return s.seats.GetByID(ctx, id)
}
