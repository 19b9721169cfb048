package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/models"
)

// CartTTL is how long a non-empty cart stays quotable.
const CartTTL = 15 * time.Minute

type Store interface {
	Get(ctx context.Context, userID string) (*models.Cart, error)
	Save(ctx context.Context, userID string, c *models.Cart) error
	Clear(ctx context.Context, userID string) error
}

type CategoryReader interface {
	GetCategory(ctx context.Context, id string) (*models.TicketCategory, error)
}

type PromoValidator interface {
	Validate(ctx context.Context, code, festivalID string, subtotal decimal.Decimal) (*models.PromoCode, error)
}

type Service struct {
	Store      Store
	Categories CategoryReader
	Promos     PromoValidator

	Now func() time.Time
}

func NewService(store Store, categories CategoryReader, promos PromoValidator) *Service {
	return &Service{Store: store, Categories: categories, Promos: promos, Now: time.Now}
}

// View is what cart endpoints return: the cart plus its derived price.
type View struct {
	Cart      *models.Cart `json:"cart"`
	Breakdown Breakdown    `json:"pricing"`
}

func (s *Service) view(c *models.Cart) *View {
	return &View{Cart: c, Breakdown: Price(c.Items, c.Promo)}
}

// Get returns the user's current cart and pricing. An expired cart
// reads as empty.
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(c), nil
}

// AddItem puts qty units of a category in the cart, snapshotting the
// current unit price. A category from a different festival clears the
// cart first: a cart quotes exactly one festival.
func (s *Service) AddItem(ctx context.Context, userID, categoryID string, qty int) (*View, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", apperrors.ErrValidation)
	}

	cat, err := s.Categories.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !cat.OnSale(s.Now()) {
		return nil, fmt.Errorf("category %s: %w", categoryID, apperrors.ErrSaleWindowClosed)
	}

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.FestivalID != "" && c.FestivalID != cat.FestivalID {
		c = &models.Cart{}
	}
	c.FestivalID = cat.FestivalID

	wasEmpty := c.IsEmpty()

	maxQty := cat.MaxPerUser
	if avail := cat.Available(); maxQty <= 0 || avail < maxQty {
		maxQty = avail
	}

	if it := c.Item(categoryID); it != nil {
		it.Quantity = clamp(it.Quantity+qty, maxQty)
		it.UnitPrice = cat.Price
		it.MaxQuantity = maxQty
		if it.Quantity == 0 {
			return s.RemoveItem(ctx, userID, categoryID)
		}
	} else {
		n := clamp(qty, maxQty)
		if n == 0 {
			return nil, fmt.Errorf("category %s has no units available: %w", categoryID, apperrors.ErrQuotaExceeded)
		}
		c.Items = append(c.Items, models.CartItem{
			CategoryID:  categoryID,
			Quantity:    n,
			UnitPrice:   cat.Price,
			MaxQuantity: maxQty,
		})
	}

	if wasEmpty {
		c.ExpiresAt = s.Now().Add(CartTTL)
	}
	return s.save(ctx, userID, c)
}

// UpdateQuantity sets a line item's quantity, clamped to
// [0, min(maxQuantity, available)]. Zero removes the item.
func (s *Service) UpdateQuantity(ctx context.Context, userID, categoryID string, qty int) (*View, error) {
	if qty < 0 {
		qty = 0
	}
	if qty == 0 {
		return s.RemoveItem(ctx, userID, categoryID)
	}

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	it := c.Item(categoryID)
	if it == nil {
		return nil, fmt.Errorf("category %s not in cart: %w", categoryID, apperrors.ErrNotFound)
	}

	cat, err := s.Categories.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	maxQty := it.MaxQuantity
	if avail := cat.Available(); avail < maxQty {
		maxQty = avail
	}

	it.Quantity = clamp(qty, maxQty)
	it.MaxQuantity = maxQty
	if it.Quantity == 0 {
		return s.RemoveItem(ctx, userID, categoryID)
	}
	return s.save(ctx, userID, c)
}

// RemoveItem drops a line item. Removing the last item empties the
// cart entirely, promo and expiry included.
func (s *Service) RemoveItem(ctx context.Context, userID, categoryID string) (*View, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.CategoryID != categoryID {
			kept = append(kept, it)
		}
	}
	c.Items = kept

	if c.IsEmpty() {
		c = &models.Cart{}
	}
	return s.save(ctx, userID, c)
}

// ApplyPromoCode validates a code against the cart's festival and
// current subtotal, then attaches it. Idempotent: re-applying replaces
// the promo and recomputes from scratch, it never stacks.
func (s *Service) ApplyPromoCode(ctx context.Context, userID, code string) (*View, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, fmt.Errorf("cannot apply promo to an empty cart: %w", apperrors.ErrValidation)
	}

	subtotal := Price(c.Items, nil).Subtotal
	promo, err := s.Promos.Validate(ctx, code, c.FestivalID, subtotal)
	if err != nil {
		return nil, err
	}

	c.Promo = promo.Applied()
	return s.save(ctx, userID, c)
}

// Clear discards the cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.Store.Clear(ctx, userID)
}

func (s *Service) load(ctx context.Context, userID string) (*models.Cart, error) {
	c, err := s.Store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.Expired(s.Now()) {
		return &models.Cart{}, nil
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, userID string, c *models.Cart) (*View, error) {
	if err := s.Store.Save(ctx, userID, c); err != nil {
		return nil, err
	}
	return s.view(c), nil
}

func clamp(qty, max int) int {
	if qty < 0 {
		return 0
	}
	if max >= 0 && qty > max {
		return max
	}
	return qty
}
