package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/logger"
	"festival-ticketing/internal/models"
)

type TicketStore interface {
	GetTicketByQRToken(ctx context.Context, token string) (*models.Ticket, error)
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
}

type TokenVerifier interface {
	Verify(ticketID, token string) bool
}

type EventPublisher interface {
	PublishTicketScanned(t models.Ticket) error
}

// Result is what gate staff see. Reason is set whenever Admit is false
// so a rejection is never silent.
type Result struct {
	Admit  bool           `json:"admit"`
	Ticket *models.Ticket `json:"ticket,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// Service admits ticket holders at physical gates. Scan mutates state,
// Validate is the read-only pre-check for turnstile displays.
type Service struct {
	DB     TicketStore
	Tokens TokenVerifier
	Events EventPublisher
	Logger *logger.Logger

	Now func() time.Time
}

func NewService(db TicketStore, tokens TokenVerifier, events EventPublisher, log *logger.Logger) *Service {
	return &Service{DB: db, Tokens: tokens, Events: events, Logger: log, Now: time.Now}
}

// Scan resolves a QR token, applies the admission rules and, on
// success, marks the ticket USED. The status check and the write are
// one compare-and-set: two simultaneous scans of the same token admit
// at most once.
func (s *Service) Scan(ctx context.Context, qrToken, zoneID string) (Result, error) {
	t, err := s.resolve(ctx, qrToken)
	if err != nil {
		return Result{}, err
	}

	if r, rejected := admissionCheck(t, zoneID); rejected {
		return r, nil
	}

	ok, err := s.DB.MarkUsed(ctx, t.ID, s.Now())
	if err != nil {
		return Result{}, err
	}
	if !ok {
		// Lost the race or the state moved since we read it.
		current, err := s.DB.GetTicketByID(ctx, t.ID)
		if err != nil {
			return Result{}, err
		}
		r, _ := admissionCheck(current, zoneID)
		if r.Reason == "" {
			r = reject(current, "TICKET_ALREADY_USED")
		}
		return r, nil
	}

	t.Status = models.TicketUsed
	t.UsedAt = s.Now()

	if s.Events != nil {
		if err := s.Events.PublishTicketScanned(*t); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish ticket scanned %s: %v", t.ID, err))
		}
	}
	return Result{Admit: true, Ticket: t}, nil
}

// Validate runs the same resolution and rule checks as Scan without
// the state transition.
func (s *Service) Validate(ctx context.Context, qrToken, zoneID string) (Result, error) {
	t, err := s.resolve(ctx, qrToken)
	if err != nil {
		return Result{}, err
	}
	if r, rejected := admissionCheck(t, zoneID); rejected {
		return r, nil
	}
	return Result{Admit: true, Ticket: t}, nil
}

func (s *Service) resolve(ctx context.Context, qrToken string) (*models.Ticket, error) {
	if qrToken == "" {
		return nil, fmt.Errorf("qr token is required: %w", apperrors.ErrValidation)
	}
	t, err := s.DB.GetTicketByQRToken(ctx, qrToken)
	if err != nil {
		return nil, err
	}
	if s.Tokens != nil && !s.Tokens.Verify(t.ID, qrToken) {
		// A stored token that fails its own signature means tampering
		// or a secret rotation; treat it as unknown.
		return nil, fmt.Errorf("qr token signature: %w", apperrors.ErrNotFound)
	}
	return t, nil
}

func admissionCheck(t *models.Ticket, zoneID string) (Result, bool) {
	switch t.Status {
	case models.TicketUsed:
		return reject(t, "TICKET_ALREADY_USED"), true
	case models.TicketCancelled:
		return reject(t, "TICKET_CANCELLED"), true
	case models.TicketSold:
	default:
		return reject(t, "TICKET_NOT_SOLD"), true
	}
	if zoneID != "" && !t.CategoryType.HasZoneAccess(zoneID) {
		return reject(t, "ZONE_ACCESS_DENIED"), true
	}
	return Result{}, false
}

func reject(t *models.Ticket, reason string) Result {
	return Result{Admit: false, Ticket: t, Reason: reason}
}

// ReasonError maps a rejection reason back to its sentinel, for
// callers that want errors.Is semantics.
func ReasonError(reason string) error {
	switch reason {
	case "TICKET_ALREADY_USED":
		return apperrors.ErrTicketAlreadyUsed
	case "TICKET_CANCELLED":
		return apperrors.ErrTicketCancelled
	case "TICKET_NOT_SOLD":
		return apperrors.ErrTicketNotSold
	case "ZONE_ACCESS_DENIED":
		return apperrors.ErrZoneAccessDenied
	default:
		return errors.New(reason)
	}
}
