package diff

import "skuwatch/internal/models"

// Compute compares a freshly acquired snapshot against the previous one and
// accumulates every qualifying change into a single ChangeSet. A nil
// previous snapshot means the product has never been observed, which
// short-circuits all field rules.
func Compute(current models.Snapshot, previous *models.Snapshot) models.ChangeSet {
	if previous == nil {
		return models.ChangeSet{FirstSighting: true}
	}

	var changes models.ChangeSet

	// A transition into or out of the zero sentinel is a data-quality
	// artifact of the upstream, not a price event. Both sides must be real.
	if current.Price != previous.Price && current.Price > 0 && previous.Price > 0 {
		direction := models.PriceUp
		if current.Price < previous.Price {
			direction = models.PriceDown
		}
		changes.Price = &models.PriceChange{
			Old:       previous.Price,
			New:       current.Price,
			Direction: direction,
		}
	}

	if current.InStock != previous.InStock {
		changes.Stock = &models.StockChange{
			Old:     previous.InStock,
			New:     current.InStock,
			OldText: previous.StockText,
			NewText: current.StockText,
		}
	}

	// The label can move without the boolean flipping, e.g. in-stock to
	// rush-sale. When the boolean flipped, Stock already carries both labels.
	if current.StockText != previous.StockText && changes.Stock == nil {
		changes.StockText = &models.FieldChange{Old: previous.StockText, New: current.StockText}
	}

	if current.Listed != previous.Listed {
		changes.Listing = &models.ListingChange{Old: previous.Listed, New: current.Listed}
	}

	if current.PresaleNote != previous.PresaleNote {
		changes.Presale = &models.FieldChange{Old: previous.PresaleNote, New: current.PresaleNote}
	}

	return changes
}
