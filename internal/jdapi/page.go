package jdapi

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"skuwatch/internal/models"
)

// Delisting markers on the item page. A 404 and these phrases are the only
// signals that a product is gone; everything else means "still listed".
var delistMarkers = []string{"商品已下柜", "商品不存在"}

// titleNoiseRe strips the site boilerplate suffix from a scraped page title.
var titleNoiseRe = regexp.MustCompile(`[-_|【】].*?京东.*$`)

// inlinePriceRe matches price markers embedded in the mobile page body,
// e.g. "p":"399.00".
var inlinePriceRe = regexp.MustCompile(`"p"\s*:\s*"(\d+(?:\.\d+)?)"`)

const maxNameLength = 50

// keywordClass maps a set of page phrases to an availability verdict.
type keywordClass struct {
	inStock bool
	label   string
	phrases []string
}

// keywordClasses in strict priority order: an unavailable marker wins over
// an available one even when both appear on the same page.
var keywordClasses = []keywordClass{
	{inStock: false, label: models.StockOutOfStock, phrases: []string{"无货", "缺货", "暂时缺货", "到货通知"}},
	{inStock: false, label: models.StockProcuring, phrases: []string{"采购中"}},
	{inStock: false, label: models.StockPreorder, phrases: []string{"预约"}},
	{inStock: false, label: models.StockRushSale, phrases: []string{"抢购"}},
	{inStock: true, label: models.StockInStock, phrases: []string{"有货", "现货", "加入购物车"}},
}

// Presale notes surfaced in snapshots when the page advertises one.
const (
	presalePreorder = "preorder open"
	presaleRushSale = "rush sale open"
)

// pageInfo is everything one item-page fetch can tell us: listing status,
// a display name, a low-confidence stock signal and the raw body for the
// inline price fallback.
type pageInfo struct {
	listed     bool
	name       string
	inStock    bool
	stockText  string
	stockKnown bool
	presale    string
	body       string
}

// pageInfo fetches the item page (mobile first, desktop as fallback) and
// derives the page-level signals. An unreachable page degrades to "listed,
// nothing known" rather than an error.
func (c *Client) pageInfo(ctx context.Context, sku string) pageInfo {
	info := pageInfo{listed: true, stockText: models.StockUnknown}

	resp := c.doWithRetry(ctx, fmt.Sprintf(c.mobileURL, sku), nil, models.ProductURL(sku), mobileUA, c.timeouts.page, c.retries)
	// A blocked or erroring mobile page carries no signal; only 200 and the
	// delist-indicating 404 are kept, anything else retries on the PC page.
	if !usablePage(resp) {
		resp = c.doWithRetry(ctx, fmt.Sprintf(c.itemURL, sku), nil, models.ProductURL(sku), "", c.timeouts.page, c.retries)
	}
	if resp == nil {
		return info
	}

	if resp.StatusCode() == http.StatusNotFound {
		info.listed = false
		info.stockText = models.StockDelisted
		return info
	}
	if resp.StatusCode() != http.StatusOK {
		return info
	}

	body := string(resp.Body())
	info.body = body

	for _, marker := range delistMarkers {
		if strings.Contains(body, marker) {
			info.listed = false
			info.stockText = models.StockDelisted
			return info
		}
	}

	info.name = extractName(body)

	if inStock, label, ok := scanStockKeywords(body); ok {
		info.inStock = inStock
		info.stockText = label
		info.stockKnown = true
	}
	info.presale = scanPresale(body)

	return info
}

func usablePage(resp *resty.Response) bool {
	if resp == nil {
		return false
	}
	return resp.StatusCode() == http.StatusOK || resp.StatusCode() == http.StatusNotFound
}

// extractName pulls the display name from the page title and strips the
// boilerplate the upstream appends to every title.
func extractName(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return ""
	}

	name := strings.TrimSpace(titleNoiseRe.ReplaceAllString(title, ""))
	if runes := []rune(name); len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}
	return name
}

// scanStockKeywords classifies the page body against the keyword classes in
// priority order. First class with any matching phrase wins.
func scanStockKeywords(body string) (bool, string, bool) {
	probes := make([]func() (stockSignal, bool), 0, len(keywordClasses))
	for _, class := range keywordClasses {
		class := class
		probes = append(probes, func() (stockSignal, bool) {
			for _, phrase := range class.phrases {
				if strings.Contains(body, phrase) {
					return stockSignal{inStock: class.inStock, text: class.label}, true
				}
			}
			return stockSignal{}, false
		})
	}

	signal, ok := firstHit(probes)
	return signal.inStock, signal.text, ok
}

func scanPresale(body string) string {
	if strings.Contains(body, "预约") {
		return presalePreorder
	}
	if strings.Contains(body, "抢购") {
		return presaleRushSale
	}
	return ""
}

// scanInlinePrice is the last-resort price probe over the raw page body.
func scanInlinePrice(body string) (priceQuote, bool) {
	m := inlinePriceRe.FindStringSubmatch(body)
	if m == nil {
		return priceQuote{}, false
	}
	price := parsePrice(m[1])
	if price <= 0 {
		return priceQuote{}, false
	}
	return priceQuote{price: price, list: price}, true
}
