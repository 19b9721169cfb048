package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type CategoryType string

const (
	CategoryGeneral   CategoryType = "GENERAL"
	CategoryVIP       CategoryType = "VIP"
	CategoryBackstage CategoryType = "BACKSTAGE"
	CategoryCamping   CategoryType = "CAMPING"
)

// Festival zones gated at entry.
const (
	ZoneMain      = "main"
	ZoneVIP       = "vip"
	ZoneBackstage = "backstage"
	ZoneCamping   = "camping"
)

var zoneRights = map[CategoryType][]string{
	CategoryGeneral:   {ZoneMain},
	CategoryVIP:       {ZoneMain, ZoneVIP},
	CategoryBackstage: {ZoneMain, ZoneVIP, ZoneBackstage},
	CategoryCamping:   {ZoneMain, ZoneCamping},
}

// Zones returns the zones a ticket of this category may enter.
func (t CategoryType) Zones() []string {
	return zoneRights[t]
}

// HasZoneAccess reports whether the category grants entry to zoneID.
func (t CategoryType) HasZoneAccess(zoneID string) bool {
	for _, z := range zoneRights[t] {
		if z == zoneID {
			return true
		}
	}
	return false
}

type TicketCategory struct {
	bun.BaseModel `bun:"table:ticket_categories"`

	ID         string          `bun:"id,pk" json:"id"`
	FestivalID string          `bun:"festival_id" json:"festivalId"`
	Name       string          `bun:"name" json:"name"`
	Type       CategoryType    `bun:"type" json:"type"`
	Price      decimal.Decimal `bun:"price" json:"price"`
	Currency   string          `bun:"currency" json:"currency"`
	Quota      int             `bun:"quota" json:"quota"`
	SoldCount  int             `bun:"sold_count" json:"soldCount"`
	MaxPerUser int             `bun:"max_per_user" json:"maxPerUser"`
	SaleStart  time.Time       `bun:"sale_start" json:"saleStart"`
	SaleEnd    time.Time       `bun:"sale_end" json:"saleEnd"`
	IsActive   bool            `bun:"is_active" json:"isActive"`
}

// Available returns the units still sellable.
func (c *TicketCategory) Available() int {
	if n := c.Quota - c.SoldCount; n > 0 {
		return n
	}
	return 0
}

// OnSale reports whether the category can be sold at the given instant.
// The sale window is half-open: saleStart <= now < saleEnd.
func (c *TicketCategory) OnSale(now time.Time) bool {
	return c.IsActive && !now.Before(c.SaleStart) && now.Before(c.SaleEnd)
}
