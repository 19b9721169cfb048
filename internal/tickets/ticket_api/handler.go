package ticket_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/auth"
	"festival-ticketing/internal/cart"
	"festival-ticketing/internal/checkout"
	"festival-ticketing/internal/logger"
	"festival-ticketing/internal/models"
	"festival-ticketing/internal/scanner"
	"festival-ticketing/internal/tickets"
	"festival-ticketing/internal/utils"
)

type QRRenderer interface {
	EncodePNG(token string) ([]byte, error)
}

type CategoryReader interface {
	GetCategory(ctx context.Context, id string) (*models.TicketCategory, error)
}

type Handler struct {
	Tickets    *tickets.Service
	Checkout   *checkout.Service
	Scanner    *scanner.Service
	Categories CategoryReader
	QR         QRRenderer
	Logger     *logger.Logger
}

type purchaseRequest struct {
	Items []struct {
		CategoryID string `json:"categoryId"`
		Quantity   int    `json:"quantity"`
	} `json:"items"`
	PromoCode       string `json:"promoCode,omitempty"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// Purchase runs a direct checkout over the posted items. The body is a
// purchase order, not a trusted price: every amount is re-derived
// server-side.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, fmt.Errorf("invalid request body: %w", apperrors.ErrValidation))
		return
	}
	if len(req.Items) == 0 {
		utils.WriteError(w, fmt.Errorf("items are required: %w", apperrors.ErrValidation))
		return
	}

	userID := auth.UserID(r.Context())

	crt := &models.Cart{ExpiresAt: time.Now().Add(cart.CartTTL)}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			utils.WriteError(w, fmt.Errorf("quantity must be positive: %w", apperrors.ErrValidation))
			return
		}
		cat, err := h.Categories.GetCategory(r.Context(), it.CategoryID)
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		if crt.FestivalID == "" {
			crt.FestivalID = cat.FestivalID
		} else if crt.FestivalID != cat.FestivalID {
			utils.WriteError(w, fmt.Errorf("all items must belong to one festival: %w", apperrors.ErrValidation))
			return
		}
		crt.Items = append(crt.Items, models.CartItem{
			CategoryID: it.CategoryID,
			Quantity:   it.Quantity,
			UnitPrice:  cat.Price,
		})
	}
	if req.PromoCode != "" {
		crt.Promo = &models.AppliedPromo{Code: req.PromoCode}
	}

	issued, err := h.Checkout.Checkout(r.Context(), userID, crt, req.PaymentIntentID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, issued)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	festivalID := r.URL.Query().Get("festivalId")

	list, err := h.Tickets.ListByUser(r.Context(), userID, festivalID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	t, err := h.Tickets.Get(r.Context(), ticketID, auth.UserID(r.Context()), auth.IsStaff(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	if err := h.Tickets.Cancel(r.Context(), ticketID, auth.UserID(r.Context())); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scanRequest struct {
	QRCode string `json:"qrCode"`
	ZoneID string `json:"zoneId,omitempty"`
}

type validateResponse struct {
	Valid      bool           `json:"valid"`
	Ticket     *models.Ticket `json:"ticket,omitempty"`
	ZoneAccess []string       `json:"zoneAccess,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// Validate is the read-only pre-check; it never transitions state.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, fmt.Errorf("invalid request body: %w", apperrors.ErrValidation))
		return
	}

	res, err := h.Scanner.Validate(r.Context(), req.QRCode, req.ZoneID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	resp := validateResponse{Valid: res.Admit, Ticket: res.Ticket, Reason: res.Reason}
	if res.Ticket != nil {
		resp.ZoneAccess = res.Ticket.CategoryType.Zones()
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

// Scan admits a ticket holder at a gate. Staff roles only; rejections
// carry the reason because gate staff act on it.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, fmt.Errorf("invalid request body: %w", apperrors.ErrValidation))
		return
	}

	res, err := h.Scanner.Scan(r.Context(), req.QRCode, req.ZoneID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if !res.Admit {
		utils.WriteJSON(w, apperrors.HTTPStatus(scanner.ReasonError(res.Reason)), res)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

// QRImage renders the ticket's bearer token as a PNG. Owner only: the
// image is the admission credential.
func (h *Handler) QRImage(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	t, err := h.Tickets.Get(r.Context(), ticketID, auth.UserID(r.Context()), auth.IsStaff(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	png, err := h.QR.EncodePNG(t.QRToken)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
