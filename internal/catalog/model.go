package catalog

// Shoe is the read-side view of a catalog product. Catalog management owns
// these rows; the checkout core only reads them to snapshot prices.
// Prices are in minor currency units.
type Shoe struct {
	ID         uint
	Name       string
	Price      int64
	OfferPrice *int64
	Available  bool
}

// UnitPrice is the effective selling price: the offer price when set,
// the regular price otherwise.
func (s *Shoe) UnitPrice() int64 {
	if s.OfferPrice != nil {
		return *s.OfferPrice
	}
	return s.Price
}

// DiscountPerUnit is the per-unit saving against the regular price.
func (s *Shoe) DiscountPerUnit() int64 {
	if s.OfferPrice != nil && s.Price > *s.OfferPrice {
		return s.Price - *s.OfferPrice
	}
	return 0
}
