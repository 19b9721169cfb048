package tickets

import (
	"context"
	"fmt"
	"time"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/logger"
	"festival-ticketing/internal/models"
	"festival-ticketing/internal/quota"
)

type TicketDBLayer interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketsByUser(ctx context.Context, userID, festivalID string) ([]models.Ticket, error)
	CancelIfSold(ctx context.Context, id string) (bool, error)
}

type QuotaReleaser interface {
	Release(ctx context.Context, alloc quota.Allocation) error
}

type FestivalReader interface {
	GetFestival(ctx context.Context, id string) (*models.Festival, error)
}

type EventPublisher interface {
	PublishTicketCancelled(t models.Ticket) error
}

// Service covers the post-purchase ticket lifecycle: lookup, listing
// and the SOLD -> CANCELLED refund path. SOLD -> USED belongs to the
// scanner.
type Service struct {
	DB        TicketDBLayer
	Quota     QuotaReleaser
	Festivals FestivalReader
	Events    EventPublisher
	Logger    *logger.Logger

	Now func() time.Time
}

func NewService(db TicketDBLayer, q QuotaReleaser, festivals FestivalReader, events EventPublisher, log *logger.Logger) *Service {
	return &Service{DB: db, Quota: q, Festivals: festivals, Events: events, Logger: log, Now: time.Now}
}

// Get returns a ticket if the requester owns it or holds a staff role.
func (s *Service) Get(ctx context.Context, ticketID, requesterID string, staff bool) (*models.Ticket, error) {
	t, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != requesterID && !staff {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, apperrors.ErrForbidden)
	}
	return t, nil
}

func (s *Service) ListByUser(ctx context.Context, userID, festivalID string) ([]models.Ticket, error) {
	return s.DB.GetTicketsByUser(ctx, userID, festivalID)
}

// Cancel refunds a SOLD ticket. Allowed only for the owner, only
// before the festival starts, and only while the ticket is still SOLD;
// success releases one unit of quota back to the category.
func (s *Service) Cancel(ctx context.Context, ticketID, requesterID string) error {
	t, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if t.OwnerID != requesterID {
		return fmt.Errorf("ticket %s: %w", ticketID, apperrors.ErrForbidden)
	}

	festival, err := s.Festivals.GetFestival(ctx, t.FestivalID)
	if err != nil {
		return err
	}
	if festival.Started(s.Now()) {
		return fmt.Errorf("festival %s has started: %w", festival.ID, apperrors.ErrValidation)
	}

	ok, err := s.DB.CancelIfSold(ctx, ticketID)
	if err != nil {
		return err
	}
	if !ok {
		// The compare-and-set lost; report why.
		current, err := s.DB.GetTicketByID(ctx, ticketID)
		if err != nil {
			return err
		}
		switch current.Status {
		case models.TicketUsed:
			return fmt.Errorf("ticket %s: %w", ticketID, apperrors.ErrTicketAlreadyUsed)
		case models.TicketCancelled:
			return fmt.Errorf("ticket %s: %w", ticketID, apperrors.ErrTicketCancelled)
		default:
			return fmt.Errorf("ticket %s is %s: %w", ticketID, current.Status, apperrors.ErrValidation)
		}
	}

	alloc := quota.Allocation{CategoryID: t.CategoryID, UserID: t.OwnerID, Quantity: 1}
	if err := s.Quota.Release(ctx, alloc); err != nil {
		// The ticket is cancelled either way; an unreleased unit is an
		// operational problem, not a reason to fail the refund.
		s.Logger.Error("QUOTA", fmt.Sprintf("failed to release quota for cancelled ticket %s: %v", ticketID, err))
	}

	if s.Events != nil {
		if err := s.Events.PublishTicketCancelled(*t); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish ticket cancelled %s: %v", ticketID, err))
		}
	}
	return nil
}
