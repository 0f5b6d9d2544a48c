package inventory

// StockUnit is the inventory counter for one (shoe, size) pair. Catalog
// management creates and deletes these rows; the ledger only mutates the
// stock count, always under a row lock.
type StockUnit struct {
	ShoeID uint
	Size   int
	Stock  int
}

// CartLine is one requested (shoe, size, quantity). Supplied by the cart
// collaborator at checkout start; never persisted here.
type CartLine struct {
	ShoeID   uint
	Size     int
	Quantity int
}

// RestoredItem reports stock given back for one (shoe, size) pair.
type RestoredItem struct {
	ShoeID   uint
	Size     int
	Quantity int
}
