package models

import (
	"fmt"
	"time"
)

// Availability labels carried by Snapshot.StockText. The upstream
// distinguishes more states than the in-stock boolean alone can express.
const (
	StockInStock     = "in-stock"
	StockOutOfStock  = "out-of-stock"
	StockProcuring   = "procuring"
	StockPreorder    = "preorder"
	StockRushSale    = "rush-sale"
	StockDeliverable = "deliverable"
	StockDelisted    = "delisted"
	StockUnknown     = "unknown"
)

const itemURLTemplate = "https://item.jd.com/%s.html"

// ProductURL derives the canonical product page URL for a SKU.
func ProductURL(sku string) string {
	return fmt.Sprintf(itemURLTemplate, sku)
}

// Snapshot is the reconciled state of one product at one observation time.
// Price 0 is the "unknown" sentinel, not a real price of zero.
type Snapshot struct {
	SKU         string
	Name        string
	Price       float64
	ListPrice   float64
	InStock     bool
	StockText   string
	Listed      bool
	PresaleNote string
	URL         string
	CheckedAt   time.Time
}
