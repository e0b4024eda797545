package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrEmptyToken = errors.New(
		"error getting SW_TELEGRAM_TOKEN: variable not specified or contains an empty string")
	ErrEmptyChatID = errors.New(
		"error getting SW_TELEGRAM_CHAT_ID: variable not specified or is zero")
	ErrEmptyProducts = errors.New(
		"error getting SW_PRODUCTS: no products configured")
)

type Config struct {
	Env         string // Env is the current environment: local, dev, prod.
	Area        string // Area is the upstream region code sent with price/stock queries.
	StoragePath string
	CookiePath  string
	Interval    time.Duration // Interval between check cycles.
	Products    []Product
	Timeouts    Timeouts
	Retry       Retry
	Delay       Delay
	Tg          Telegram
	Notify      Notify
}

// Product is one monitored item; Name optionally overrides the scraped title.
type Product struct {
	SKU  string
	Name string
}

// Timeouts bound every upstream request per source kind.
type Timeouts struct {
	Page    time.Duration
	Price   time.Duration
	Stock   time.Duration
	Session time.Duration
}

// Retry configures notification delivery attempts.
type Retry struct {
	Count int
	Delay time.Duration
}

// Delay is the randomized politeness pause between acquisition stages.
type Delay struct {
	Min time.Duration
	Max time.Duration
}

type Telegram struct {
	Token   string        // Token is an unique telegram bot token.
	ChatID  int64         // ChatID is the destination chat for all messages.
	Timeout time.Duration // Timeout is a poller timeout duration.
}

// Notify toggles gate each change kind independently.
type Notify struct {
	OnPriceChange    bool
	OnStockChange    bool
	OnListingChange  bool
	OnPresaleChange  bool
	OnFirstSighting  bool
	OnSessionExpired bool
}

// MustLoad loads the configuration from environment variables and returns a Config struct.
func MustLoad() *Config {
	// Automatically binds environment variables to config keys
	viper.SetEnvPrefix("SW")
	viper.AutomaticEnv()

	// optional args
	viper.SetDefault("ENV", "production")
	viper.SetDefault("AREA", "1_72_4137_0")
	viper.SetDefault("STORAGE_PATH", "data/state.db")
	viper.SetDefault("COOKIE_PATH", "config/cookies.txt")
	viper.SetDefault("INTERVAL", "60s")
	viper.SetDefault("TIMEOUT_PAGE", "15s")
	viper.SetDefault("TIMEOUT_PRICE", "20s")
	viper.SetDefault("TIMEOUT_STOCK", "10s")
	viper.SetDefault("TIMEOUT_SESSION", "10s")
	viper.SetDefault("RETRY_COUNT", 3)
	viper.SetDefault("RETRY_DELAY", "5s")
	viper.SetDefault("DELAY_MIN", "1s")
	viper.SetDefault("DELAY_MAX", "3s")
	viper.SetDefault("TELEGRAM_TIMEOUT", "15s")
	viper.SetDefault("NOTIFY_PRICE", true)
	viper.SetDefault("NOTIFY_STOCK", true)
	viper.SetDefault("NOTIFY_LISTING", true)
	viper.SetDefault("NOTIFY_PRESALE", true)
	viper.SetDefault("NOTIFY_FIRST_SIGHTING", true)
	viper.SetDefault("NOTIFY_SESSION_EXPIRED", true)

	if viper.GetString("TELEGRAM_TOKEN") == "" {
		panic(ErrEmptyToken)
	}
	if viper.GetInt64("TELEGRAM_CHAT_ID") == 0 {
		panic(ErrEmptyChatID)
	}

	products, err := ParseProducts(viper.GetString("PRODUCTS"))
	if err != nil {
		panic(err)
	}

	return &Config{
		Env:         viper.GetString("ENV"),
		Area:        viper.GetString("AREA"),
		StoragePath: viper.GetString("STORAGE_PATH"),
		CookiePath:  viper.GetString("COOKIE_PATH"),
		Interval:    viper.GetDuration("INTERVAL"),
		Products:    products,
		Timeouts: Timeouts{
			Page:    viper.GetDuration("TIMEOUT_PAGE"),
			Price:   viper.GetDuration("TIMEOUT_PRICE"),
			Stock:   viper.GetDuration("TIMEOUT_STOCK"),
			Session: viper.GetDuration("TIMEOUT_SESSION"),
		},
		Retry: Retry{
			Count: viper.GetInt("RETRY_COUNT"),
			Delay: viper.GetDuration("RETRY_DELAY"),
		},
		Delay: Delay{
			Min: viper.GetDuration("DELAY_MIN"),
			Max: viper.GetDuration("DELAY_MAX"),
		},
		Tg: Telegram{
			Token:   viper.GetString("TELEGRAM_TOKEN"),
			ChatID:  viper.GetInt64("TELEGRAM_CHAT_ID"),
			Timeout: viper.GetDuration("TELEGRAM_TIMEOUT"),
		},
		Notify: Notify{
			OnPriceChange:    viper.GetBool("NOTIFY_PRICE"),
			OnStockChange:    viper.GetBool("NOTIFY_STOCK"),
			OnListingChange:  viper.GetBool("NOTIFY_LISTING"),
			OnPresaleChange:  viper.GetBool("NOTIFY_PRESALE"),
			OnFirstSighting:  viper.GetBool("NOTIFY_FIRST_SIGHTING"),
			OnSessionExpired: viper.GetBool("NOTIFY_SESSION_EXPIRED"),
		},
	}
}

// ParseProducts parses a comma-separated list of "sku" or "sku:display name"
// entries.
func ParseProducts(raw string) ([]Product, error) {
	var products []Product
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		sku, name, _ := strings.Cut(entry, ":")
		sku = strings.TrimSpace(sku)
		if sku == "" {
			return nil, fmt.Errorf("invalid product entry %q: empty sku", entry)
		}
		products = append(products, Product{SKU: sku, Name: strings.TrimSpace(name)})
	}
	if len(products) == 0 {
		return nil, ErrEmptyProducts
	}
	return products, nil
}
