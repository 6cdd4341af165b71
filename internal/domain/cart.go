package domain

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is one product in an in-progress sale.
// StockCeiling is the last known stock from the snapshot, not the inventory's live value.
type CartLine struct {
	ProductID      int64           `json:"product_id"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	StockCeiling   int             `json:"stock_ceiling"`
	IdempotencyKey string          `json:"idempotency_key"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart keeps one line per product in insertion order.
type Cart struct {
	mu     sync.Mutex
	lines  []CartLine
	newKey func() string
}

func NewCart() *Cart {
	return &Cart{newKey: uuid.NewString}
}

func (c *Cart) find(productID int64) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddOrIncrement creates the line or adds quantity to it. The result must stay
// within stockCeiling, otherwise nothing changes. The unit price is only taken
// when the line is created.
func (c *Cart) AddOrIncrement(productID int64, quantity int, referencePrice decimal.Decimal, stockCeiling int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	i := c.find(productID)
	if i < 0 {
		if quantity > stockCeiling {
			return &StockExceededError{
				ProductID:   productID,
				Requested:   quantity,
				Ceiling:     stockCeiling,
				MaxAddition: max(stockCeiling, 0),
			}
		}
		c.lines = append(c.lines, CartLine{
			ProductID:      productID,
			Quantity:       quantity,
			UnitPrice:      referencePrice,
			StockCeiling:   stockCeiling,
			IdempotencyKey: c.newKey(),
		})
		return nil
	}

	line := &c.lines[i]
	if line.Quantity+quantity > stockCeiling {
		return &StockExceededError{
			ProductID:   productID,
			Requested:   quantity,
			Current:     line.Quantity,
			Ceiling:     stockCeiling,
			MaxAddition: max(stockCeiling-line.Quantity, 0),
		}
	}
	line.Quantity += quantity
	line.StockCeiling = stockCeiling
	line.IdempotencyKey = c.newKey()
	return nil
}

// SetQuantity replaces a line's quantity; zero or less removes the line.
func (c *Cart) SetQuantity(productID int64, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.find(productID)
	if i < 0 {
		if quantity <= 0 {
			return nil
		}
		return ErrLineNotFound
	}
	if quantity <= 0 {
		c.removeAt(i)
		return nil
	}

	line := &c.lines[i]
	if quantity > line.StockCeiling {
		return &StockExceededError{
			ProductID:   productID,
			Requested:   quantity,
			Current:     line.Quantity,
			Ceiling:     line.StockCeiling,
			MaxAddition: max(line.StockCeiling-line.Quantity, 0),
		}
	}
	if quantity != line.Quantity {
		line.Quantity = quantity
		line.IdempotencyKey = c.newKey()
	}
	return nil
}

func (c *Cart) Remove(productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.find(productID); i >= 0 {
		c.removeAt(i)
	}
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Line(productID int64) (CartLine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.find(productID); i >= 0 {
		return c.lines[i], true
	}
	return CartLine{}, false
}

func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}
