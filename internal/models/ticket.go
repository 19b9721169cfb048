package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketReserved  TicketStatus = "RESERVED"
	TicketSold      TicketStatus = "SOLD"
	TicketUsed      TicketStatus = "USED"
	TicketCancelled TicketStatus = "CANCELLED"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID           string          `bun:"id,pk" json:"id"`
	CategoryID   string          `bun:"category_id" json:"categoryId"`
	CategoryType CategoryType    `bun:"category_type" json:"categoryType"`
	FestivalID   string          `bun:"festival_id" json:"festivalId"`
	OwnerID      string          `bun:"owner_id" json:"ownerId"`
	QRToken      string          `bun:"qr_token,unique" json:"-"`
	Status       TicketStatus    `bun:"status" json:"status"`
	PricePaid    decimal.Decimal `bun:"price_paid" json:"pricePaid"`
	Currency     string          `bun:"currency" json:"currency"`
	IssuedAt     time.Time       `bun:"issued_at" json:"issuedAt"`
	UsedAt       time.Time       `bun:"used_at,nullzero" json:"usedAt,omitempty"`
}
