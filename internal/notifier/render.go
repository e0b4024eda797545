package notifier

import (
	"fmt"
	"strings"
	"time"

	"skuwatch/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

// Scraped text goes into Markdown-mode messages; an unescaped marker in a
// product title makes Telegram reject the whole message.
var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// renderProduct builds the update message in a fixed field order: price,
// stock boolean, stock label, listing status, presale, timestamp footer.
// Only sections present in the change-set are rendered.
func renderProduct(snap models.Snapshot, changes models.ChangeSet, now time.Time) string {
	if changes.FirstSighting {
		return renderFirstSighting(snap, now)
	}

	lines := []string{
		"📦 *Product update*",
		"",
		"🏷️ " + escapeMarkdown(snap.Name),
		"🔗 " + snap.URL,
		"",
	}

	if changes.Price != nil {
		arrow := "⬆️"
		if changes.Price.Direction == models.PriceDown {
			arrow = "⬇️"
		}
		lines = append(lines, fmt.Sprintf("💰 Price: ¥%.2f → ¥%.2f %s", changes.Price.Old, changes.Price.New, arrow))
	}

	if changes.Stock != nil {
		icon := "❌"
		if changes.Stock.New {
			icon = "✅"
		}
		lines = append(lines, fmt.Sprintf("📦 Stock: %s → %s %s",
			escapeMarkdown(changes.Stock.OldText), escapeMarkdown(changes.Stock.NewText), icon))
	}

	if changes.StockText != nil {
		lines = append(lines, fmt.Sprintf("📦 Stock status: %s → %s",
			escapeMarkdown(changes.StockText.Old), escapeMarkdown(changes.StockText.New)))
	}

	if changes.Listing != nil {
		icon := "🔴"
		if changes.Listing.New {
			icon = "🟢"
		}
		lines = append(lines, fmt.Sprintf("🏪 Listing: %s → %s %s",
			listingLabel(changes.Listing.Old), listingLabel(changes.Listing.New), icon))
	}

	if changes.Presale != nil {
		lines = append(lines, fmt.Sprintf("🎫 Presale: %s → %s",
			orNone(changes.Presale.Old), orNone(changes.Presale.New)))
	}

	lines = append(lines, "", "⏰ "+now.Format(timeLayout))
	return strings.Join(lines, "\n")
}

// renderFirstSighting summarizes the full snapshot instead of a diff.
func renderFirstSighting(snap models.Snapshot, now time.Time) string {
	lines := []string{
		"🆕 *Now monitoring*",
		"",
		"🏷️ " + escapeMarkdown(snap.Name),
		"🔗 " + snap.URL,
		"",
		fmt.Sprintf("💰 Current price: ¥%.2f", snap.Price),
		"📦 Stock status: " + escapeMarkdown(snap.StockText),
		"🏪 Listing: " + listingLabel(snap.Listed),
	}
	if snap.PresaleNote != "" {
		lines = append(lines, "🎫 Presale: "+snap.PresaleNote)
	}
	lines = append(lines, "", "⏰ "+now.Format(timeLayout))
	return strings.Join(lines, "\n")
}

func renderSessionExpired(now time.Time) string {
	lines := []string{
		"🚨 *Session expired*",
		"",
		"The upstream login session is no longer usable. Update the cookie file and restart, or wait for the next cycle after renewing it.",
		"",
		"⏰ " + now.Format(timeLayout),
	}
	return strings.Join(lines, "\n")
}

func renderCycleError(detail string, now time.Time) string {
	lines := []string{
		"⚠️ *Monitor error*",
		"",
		detail,
		"",
		"⏰ " + now.Format(timeLayout),
	}
	return strings.Join(lines, "\n")
}

func renderStartup(productNames []string, now time.Time) string {
	lines := []string{
		"🚀 *Product monitor started*",
		"",
		"Watching:",
	}
	for _, name := range productNames {
		lines = append(lines, "• "+escapeMarkdown(name))
	}
	lines = append(lines, "", "⏰ "+now.Format(timeLayout))
	return strings.Join(lines, "\n")
}

func listingLabel(listed bool) string {
	if listed {
		return "listed"
	}
	return "delisted"
}

func orNone(value string) string {
	if value == "" {
		return "none"
	}
	return value
}
