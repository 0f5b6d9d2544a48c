package inventory

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// InsufficientStockError carries enough detail for an actionable
// "only N left" message tied to the specific shoe and size.
type InsufficientStockError struct {
	ShoeID    uint
	Size      int
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf(
		"insufficient stock for shoe %d size %d: available %d, requested %d",
		e.ShoeID, e.Size, e.Available, e.Requested,
	)
}

// UnknownSizeError reports a (shoe, size) pair with no stock row.
type UnknownSizeError struct {
	ShoeID uint
	Size   int
}

func (e *UnknownSizeError) Error() string {
	return fmt.Sprintf("size %d not available for shoe %d", e.Size, e.ShoeID)
}
