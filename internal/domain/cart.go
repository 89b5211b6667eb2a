package domain

import "errors"

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrInvalidItem     = errors.New("variant id is required")
	ErrOutOfStock      = errors.New("variant is out of stock")
)

// LineItem is the display snapshot of a variant before a quantity is chosen.
type LineItem struct {
	VariantID   string  `json:"variantId"`
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Brand       string  `json:"brand,omitempty"`
	Unit        string  `json:"unit,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	UnitPrice   float64 `json:"unitPrice"`
	MaxQuantity int     `json:"maxQuantity"`
}

// CartLine is one distinct purchasable variant held in the cart.
type CartLine struct {
	LineItem
	Quantity int `json:"quantity"`
}

func (l CartLine) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Cart keeps lines in insertion order with at most one line per variant.
// It is not safe for concurrent use.
type Cart struct {
	lines []CartLine
}

func (c *Cart) index(variantID string) int {
	for i := range c.lines {
		if c.lines[i].VariantID == variantID {
			return i
		}
	}
	return -1
}

// Add merges quantity into the line for item.VariantID, capped at
// item.MaxQuantity. The item's stock bound replaces the one stored on an
// existing line.
func (c *Cart) Add(item LineItem, quantity int) (CartLine, error) {
	if item.VariantID == "" {
		return CartLine{}, ErrInvalidItem
	}
	if quantity <= 0 {
		return CartLine{}, ErrInvalidQuantity
	}

	idx := c.index(item.VariantID)
	if idx >= 0 {
		existing := c.lines[idx]
		next := min(existing.Quantity+quantity, item.MaxQuantity)
		if next <= 0 {
			return CartLine{}, ErrOutOfStock
		}
		existing.Quantity = next
		existing.MaxQuantity = item.MaxQuantity
		c.lines[idx] = existing
		return existing, nil
	}

	next := min(quantity, item.MaxQuantity)
	if next <= 0 {
		return CartLine{}, ErrOutOfStock
	}
	line := CartLine{LineItem: item, Quantity: next}
	c.lines = append(c.lines, line)
	return line, nil
}

// SetQuantity clamps quantity to [1, MaxQuantity] and stores it on the line.
// It reports false when the variant is not in the cart.
func (c *Cart) SetQuantity(variantID string, quantity int) (CartLine, bool) {
	idx := c.index(variantID)
	if idx < 0 {
		return CartLine{}, false
	}
	line := c.lines[idx]
	line.Quantity = ClampQuantity(quantity, line.MaxQuantity)
	c.lines[idx] = line
	return line, true
}

// ClampQuantity bounds quantity by maxQuantity first and then by 1.
func ClampQuantity(quantity, maxQuantity int) int {
	if quantity > maxQuantity {
		quantity = maxQuantity
	}
	if quantity < 1 {
		quantity = 1
	}
	return quantity
}

func (c *Cart) Remove(variantID string) bool {
	idx := c.index(variantID)
	if idx < 0 {
		return false
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	return true
}

// Replace discards every line and installs lines. Lines without a variant id
// or with a non-positive quantity are dropped; a repeated variant keeps the
// last occurrence.
func (c *Cart) Replace(lines []CartLine) {
	c.lines = nil
	for _, line := range lines {
		if line.VariantID == "" || line.Quantity <= 0 {
			continue
		}
		if idx := c.index(line.VariantID); idx >= 0 {
			c.lines[idx] = line
			continue
		}
		c.lines = append(c.lines, line)
	}
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) Find(variantID string) (CartLine, bool) {
	idx := c.index(variantID)
	if idx < 0 {
		return CartLine{}, false
	}
	return c.lines[idx], true
}

// Lines returns a copy of the current lines.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) Total() float64 {
	var total float64
	for _, line := range c.lines {
		total += line.Subtotal()
	}
	return total
}

func (c *Cart) ItemCount() int {
	count := 0
	for _, line := range c.lines {
		count += line.Quantity
	}
	return count
}
