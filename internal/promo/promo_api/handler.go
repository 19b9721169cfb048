package promo_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/promo"
	"festival-ticketing/internal/utils"
)

type Handler struct {
	Promos *promo.Service
}

type validateRequest struct {
	Code       string          `json:"code"`
	FestivalID string          `json:"festivalId"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// Validate checks a code against a festival and subtotal and returns
// the discount shape the cart applies.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, fmt.Errorf("invalid request body: %w", apperrors.ErrValidation))
		return
	}
	if req.FestivalID == "" {
		utils.WriteError(w, fmt.Errorf("festivalId is required: %w", apperrors.ErrValidation))
		return
	}

	p, err := h.Promos.Validate(r.Context(), req.Code, req.FestivalID, req.Subtotal)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, p.Applied())
}
