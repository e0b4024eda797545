package jdapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"skuwatch/internal/models"
)

// Upstream endpoints. The price and stock lists are fallback chains in
// priority order; the first entry is the primary source.
var (
	defaultPriceURLs = []string{
		"https://p.3.cn/prices/mgets",
		"https://pe.3.cn/prices/mgets",
	}
	defaultStockURLs = []string{
		"https://c0.3.cn/stocks",
		"https://cd.jd.com/stocks",
	}
)

const (
	defaultItemURL   = "https://item.jd.com/%s.html"
	defaultMobileURL = "https://item.m.jd.com/product/%s.html"

	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	mobileUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15"

	// Pause before retrying a timed-out request.
	retryWait = time.Second
)

// SnapshotSource is the acquisition capability consumed by the monitor
// service.
type SnapshotSource interface {
	// Snapshot reconciles one product snapshot from every available source.
	// It never fails: unrecoverable acquisition problems degrade to a
	// snapshot with unknown availability.
	Snapshot(ctx context.Context, sku, hintName string) models.Snapshot
}

// Client acquires product state from the upstream's price APIs, stock APIs
// and item pages, in that order of confidence.
type Client struct {
	log       *slog.Logger
	http      *resty.Client
	area      string
	priceURLs []string
	stockURLs []string
	itemURL   string
	mobileURL string
	timeouts  timeouts
	retries   int
	delay     func(ctx context.Context)
}

type timeouts struct {
	page  time.Duration
	price time.Duration
	stock time.Duration
}

// Options configures a Client. Zero values fall back to the real upstream
// endpoints and the original per-source timeouts; tests override the URLs
// and replace Delay with a no-op.
type Options struct {
	Area         string
	PageTimeout  time.Duration
	PriceTimeout time.Duration
	StockTimeout time.Duration
	DelayMin     time.Duration
	DelayMax     time.Duration
	PriceURLs    []string
	StockURLs    []string
	ItemURL      string // format template with one %s for the sku
	MobileURL    string
	Delay        func(ctx context.Context) // overrides the randomized politeness pause
}

func NewClient(log *slog.Logger, cookie string, opts Options) *Client {
	if opts.Area == "" {
		opts.Area = "1_72_4137_0"
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 15 * time.Second
	}
	if opts.PriceTimeout <= 0 {
		opts.PriceTimeout = 20 * time.Second
	}
	if opts.StockTimeout <= 0 {
		opts.StockTimeout = 10 * time.Second
	}
	if len(opts.PriceURLs) == 0 {
		opts.PriceURLs = defaultPriceURLs
	}
	if len(opts.StockURLs) == 0 {
		opts.StockURLs = defaultStockURLs
	}
	if opts.ItemURL == "" {
		opts.ItemURL = defaultItemURL
	}
	if opts.MobileURL == "" {
		opts.MobileURL = defaultMobileURL
	}
	if opts.Delay == nil {
		opts.Delay = randomDelay(opts.DelayMin, opts.DelayMax)
	}

	client := resty.New()
	client.SetHeaders(map[string]string{
		"User-Agent":      desktopUA,
		"Accept":          "*/*",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		"Referer":         "https://www.jd.com/",
	})
	client.SetHeader("Cookie", cookie)

	return &Client{
		log:       log,
		http:      client,
		area:      opts.Area,
		priceURLs: opts.PriceURLs,
		stockURLs: opts.StockURLs,
		itemURL:   opts.ItemURL,
		mobileURL: opts.MobileURL,
		timeouts:  timeouts{page: opts.PageTimeout, price: opts.PriceTimeout, stock: opts.StockTimeout},
		retries:   2,
		delay:     opts.Delay,
	}
}

// Snapshot runs the acquisition stages in priority order. A delisting
// verdict from the item page short-circuits price and stock probing
// entirely.
func (c *Client) Snapshot(ctx context.Context, sku, hintName string) models.Snapshot {
	const opn = "jdapi.Snapshot"
	log := c.log.With("op", opn, "sku", sku)

	c.delay(ctx)
	page := c.pageInfo(ctx, sku)

	name := hintName
	if name == "" {
		name = page.name
	}
	if name == "" {
		name = "item-" + sku
	}

	if !page.listed {
		log.Info("product is delisted")
		return models.Snapshot{
			SKU:       sku,
			Name:      name,
			Listed:    false,
			InStock:   false,
			StockText: models.StockDelisted,
			URL:       models.ProductURL(sku),
			CheckedAt: time.Now().UTC(),
		}
	}

	c.delay(ctx)
	price, listPrice := c.acquirePrice(ctx, sku, page.body)

	c.delay(ctx)
	inStock, stockText := c.acquireStock(ctx, sku, page)

	log.Info("product state acquired", "name", name, "price", price, "stock", stockText)

	return models.Snapshot{
		SKU:         sku,
		Name:        name,
		Price:       price,
		ListPrice:   listPrice,
		InStock:     inStock,
		StockText:   stockText,
		Listed:      true,
		PresaleNote: page.presale,
		URL:         models.ProductURL(sku),
		CheckedAt:   time.Now().UTC(),
	}
}

type priceQuote struct {
	price float64
	list  float64
}

// priceItem is one element of the price API response. Values arrive as
// strings; "m" is the list price and "op" the older original-price field.
type priceItem struct {
	P  string `json:"p"`
	M  string `json:"m"`
	Op string `json:"op"`
}

// acquirePrice walks the price chain: dedicated endpoints first, then
// price markers embedded in the already-fetched page body as a last resort.
// The first strictly-positive price wins; the list price rides along from
// whichever source answered.
func (c *Client) acquirePrice(ctx context.Context, sku, pageBody string) (float64, float64) {
	params := map[string]string{
		"skuIds": "J_" + sku,
		"type":   "1",
		"area":   c.area,
		"pduid":  strconv.FormatInt(rand.Int63n(9_000_000_000)+1_000_000_000, 10),
		"_":      strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	referer := models.ProductURL(sku)

	probes := make([]func() (priceQuote, bool), 0, len(c.priceURLs)+1)
	for _, priceURL := range c.priceURLs {
		priceURL := priceURL
		probes = append(probes, func() (priceQuote, bool) {
			resp := c.getWithRetry(ctx, priceURL, params, referer, c.timeouts.price, c.retries)
			if resp == nil || resp.StatusCode() != http.StatusOK {
				return priceQuote{}, false
			}

			var items []priceItem
			if err := json.Unmarshal(resp.Body(), &items); err != nil || len(items) == 0 {
				c.log.Debug("price payload is not parseable", "url", priceURL, "err", err)
				return priceQuote{}, false
			}

			price := parsePrice(items[0].P)
			if price <= 0 {
				return priceQuote{}, false
			}
			list := parsePrice(items[0].M)
			if list <= 0 {
				list = parsePrice(items[0].Op)
			}
			if list <= 0 {
				list = price
			}
			return priceQuote{price: price, list: list}, true
		})
	}
	probes = append(probes, func() (priceQuote, bool) {
		return scanInlinePrice(pageBody)
	})

	quote, ok := firstHit(probes)
	if !ok {
		c.log.Debug("no price source yielded a usable price", "sku", sku)
		return 0, 0
	}
	return quote.price, quote.list
}

type stockSignal struct {
	inStock bool
	text    string
}

// stockPayload is the structured stock API response.
type stockPayload struct {
	StockState     int    `json:"StockState"`
	StockStateName string `json:"StockStateName"`
}

// acquireStock walks the stock chain. Structured endpoints are tried in
// order; the page keyword scan is the lowest-confidence signal and only
// consulted when every API source failed.
func (c *Client) acquireStock(ctx context.Context, sku string, page pageInfo) (bool, string) {
	params := map[string]string{
		"skuId":    sku,
		"area":     c.area,
		"venderId": "0",
		"cat":      "0,0,0",
		"_":        strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	referer := models.ProductURL(sku)

	probes := make([]func() (stockSignal, bool), 0, len(c.stockURLs))
	for _, stockURL := range c.stockURLs {
		stockURL := stockURL
		probes = append(probes, func() (stockSignal, bool) {
			resp := c.getWithRetry(ctx, stockURL, params, referer, c.timeouts.stock, 1)
			if resp == nil || resp.StatusCode() != http.StatusOK {
				return stockSignal{}, false
			}

			var payload stockPayload
			if err := json.Unmarshal(resp.Body(), &payload); err != nil {
				c.log.Debug("stock payload is not parseable", "url", stockURL, "err", err)
				return stockSignal{}, false
			}
			if payload.StockState == 0 && payload.StockStateName == "" {
				return stockSignal{}, false
			}

			text := stockCodeText(payload.StockState)
			if text == models.StockUnknown && payload.StockStateName != "" {
				text = payload.StockStateName
			}
			return stockSignal{inStock: inStockCode(payload.StockState), text: text}, true
		})
	}

	if signal, ok := firstHit(probes); ok {
		return signal.inStock, signal.text
	}

	c.log.Debug("stock APIs unavailable, using page-derived signal", "sku", sku)
	if page.stockKnown {
		return page.inStock, page.stockText
	}
	return false, models.StockUnknown
}

// stockCodeText maps the upstream's numeric stock state to the availability
// vocabulary.
func stockCodeText(code int) string {
	switch code {
	case 1, 33:
		return models.StockInStock
	case 34:
		return models.StockOutOfStock
	case 36:
		return models.StockPreorder
	case 40:
		return models.StockDeliverable
	case 0:
		return models.StockUnknown
	default:
		return "status:" + strconv.Itoa(code)
	}
}

func inStockCode(code int) bool {
	return code == 1 || code == 33 || code == 40
}

// getWithRetry performs a GET bounded by a per-request deadline, retrying
// only on timeout with a short pause. 4xx/5xx responses are handed back to
// the caller unretried; transport errors yield nil.
func (c *Client) getWithRetry(
	ctx context.Context,
	url string,
	params map[string]string,
	referer string,
	timeout time.Duration,
	attempts int,
) *resty.Response {
	return c.doWithRetry(ctx, url, params, referer, "", timeout, attempts)
}

func (c *Client) doWithRetry(
	ctx context.Context,
	url string,
	params map[string]string,
	referer, userAgent string,
	timeout time.Duration,
	attempts int,
) *resty.Response {
	for attempt := 1; attempt <= attempts; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		req := c.http.R().SetContext(reqCtx).SetHeader("Referer", referer)
		if userAgent != "" {
			req.SetHeader("User-Agent", userAgent)
		}
		if len(params) > 0 {
			req.SetQueryParams(params)
		}
		resp, err := req.Get(url)
		cancel()

		if err == nil {
			return resp
		}
		if !isTimeout(err) {
			c.log.Debug("request failed", "url", url, "err", err)
			return nil
		}
		if attempt == attempts {
			c.log.Debug("request timed out, no attempts left", "url", url)
			return nil
		}

		c.log.Debug("request timed out, retrying", "url", url, "attempt", attempt+1, "of", attempts)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retryWait):
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func parsePrice(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

// randomDelay returns the politeness pause inserted between acquisition
// stages to keep the request pattern irregular. It honors cancellation.
func randomDelay(minPause, maxPause time.Duration) func(ctx context.Context) {
	return func(ctx context.Context) {
		pause := minPause
		if span := maxPause - minPause; span > 0 {
			pause += time.Duration(rand.Int63n(int64(span)))
		}
		if pause <= 0 {
			return
		}
		select {
		case <-ctx.Done():
		case <-time.After(pause):
		}
	}
}
