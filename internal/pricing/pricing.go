package pricing

// All amounts are in minor currency units. The calculator is pure; callers
// snapshot the unit prices before pricing so the result never depends on
// live catalog state.

type Line struct {
	// UnitPrice is the effective selling price per unit (offer price when
	// the shoe is on offer).
	UnitPrice int64
	// RegularPrice is the non-offer price, used to compute the discount.
	RegularPrice int64
	Quantity     int
}

type Prices struct {
	Subtotal     int64
	Discount     int64
	Tax          int64
	DeliveryCost int64
	Total        int64
}

// Calculate prices a cart. Tax is charged on subtotal plus delivery, at
// taxRateBps basis points, rounded half-up to the nearest minor unit.
func Calculate(lines []Line, taxRateBps, deliveryCost int64) Prices {
	var subtotal, discount int64

	for _, l := range lines {
		qty := int64(l.Quantity)
		subtotal += l.UnitPrice * qty
		if l.RegularPrice > l.UnitPrice {
			discount += (l.RegularPrice - l.UnitPrice) * qty
		}
	}

	taxable := subtotal + deliveryCost
	tax := (taxable*taxRateBps + 5000) / 10000

	return Prices{
		Subtotal:     subtotal,
		Discount:     discount,
		Tax:          tax,
		DeliveryCost: deliveryCost,
		Total:        subtotal + deliveryCost + tax,
	}
}
