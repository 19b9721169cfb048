package payment

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"festival-ticketing/internal/logger"
	"festival-ticketing/internal/models"
)

// Handler receives the Stripe webhook feed. Confirmed intents are
// recorded so checkout can treat them as "payment confirmed".
type Handler struct {
	Store         *Store
	WebhookSecret string
	Log           *logger.Logger
}

func NewHandler(store *Store, webhookSecret string, log *logger.Logger) *Handler {
	return &Handler{Store: store, WebhookSecret: webhookSecret, Log: log}
}

// Router returns the gin engine serving the webhook endpoint; main
// mounts it under /payments.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/webhook", h.Webhook)
	return r
}

func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 65536))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read payload"})
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		h.Log.LogSecurity("WEBHOOK", fmt.Sprintf("signature verification failed: %v", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.amount_capturable_updated", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			h.Log.Error("PAYMENT", fmt.Sprintf("decode %s payload: %v", event.Type, err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		ev := models.PaymentEvent{
			IntentID:    intent.ID,
			AmountCents: intent.Amount,
			Currency:    string(intent.Currency),
			Status:      string(intent.Status),
		}
		if err := h.Store.RecordEvent(c.Request.Context(), ev); err != nil {
			h.Log.Error("PAYMENT", fmt.Sprintf("record event for intent %s: %v", intent.ID, err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record event"})
			return
		}
		h.Log.LogPayment(intent.ID, fmt.Sprintf("recorded %s (%d %s)", event.Type, intent.Amount, intent.Currency))
	default:
		// Other event types are acknowledged and dropped.
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
