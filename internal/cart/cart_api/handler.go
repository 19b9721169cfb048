package cart_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/auth"
	"festival-ticketing/internal/cart"
	"festival-ticketing/internal/utils"
)

type Handler struct {
	Carts *cart.Service
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Carts.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

type itemRequest struct {
	CategoryID string `json:"categoryId"`
	Quantity   int    `json:"quantity"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, fmt.Errorf("invalid request body: %w", apperrors.ErrValidation))
		return
	}

	view, err := h.Carts.AddItem(r.Context(), auth.UserID(r.Context()), req.CategoryID, req.Quantity)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, fmt.Errorf("invalid request body: %w", apperrors.ErrValidation))
		return
	}

	view, err := h.Carts.UpdateQuantity(r.Context(), auth.UserID(r.Context()), categoryID, req.Quantity)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")
	view, err := h.Carts.RemoveItem(r.Context(), auth.UserID(r.Context()), categoryID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, fmt.Errorf("invalid request body: %w", apperrors.ErrValidation))
		return
	}

	view, err := h.Carts.ApplyPromoCode(r.Context(), auth.UserID(r.Context()), req.Code)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Carts.Clear(r.Context(), auth.UserID(r.Context())); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
