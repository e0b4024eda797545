package models

// Price change directions.
const (
	PriceUp   = "up"
	PriceDown = "down"
)

// FieldChange is an old/new pair for a text field.
type FieldChange struct {
	Old string
	New string
}

// PriceChange - a genuine price movement with its direction.
type PriceChange struct {
	Old       float64
	New       float64
	Direction string
}

// StockChange carries the in-stock boolean flip together with the human
// labels on both sides.
type StockChange struct {
	Old     bool
	New     bool
	OldText string
	NewText string
}

// ListingChange - the product page appeared or disappeared.
type ListingChange struct {
	Old bool
	New bool
}

// ChangeSet - comparison result between two snapshots of the same product.
// FirstSighting replaces the field-by-field entries when there is no
// previous snapshot to compare against.
type ChangeSet struct {
	FirstSighting bool
	Price         *PriceChange
	Stock         *StockChange
	StockText     *FieldChange
	Listing       *ListingChange
	Presale       *FieldChange
}

// Empty reports whether the change-set carries nothing notify-worthy.
func (c ChangeSet) Empty() bool {
	return !c.FirstSighting && c.Price == nil && c.Stock == nil &&
		c.StockText == nil && c.Listing == nil && c.Presale == nil
}
