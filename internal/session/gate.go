package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Default probe endpoints. The profile endpoint is authoritative; the
// favorites endpoint answers with account-shaped data for any logged-in
// session even when the profile endpoint is unreachable.
const (
	defaultProfileURL   = "https://passport.jd.com/user/petName/getUserInfoForMini498.action"
	defaultFavoritesURL = "https://api.m.jd.com/api?appid=jd-cphdeveloper-m&functionId=queryShopFavList&body={}"

	defaultTimeout = 10 * time.Second

	// pt_key values issued by the upstream are well over this length.
	minKeyLength = 20
)

var (
	ptPinRe = regexp.MustCompile(`pt_pin=([^;]+)`)
	ptKeyRe = regexp.MustCompile(`pt_key=([^;]+)`)
)

// State is the outcome of one session probe. It is recomputed every cycle
// and never persisted.
type State struct {
	Valid   bool
	Account string
}

// HealthGate is the session capability consumed by the monitor service.
type HealthGate interface {
	// Check probes the upstream session and reports whether it is usable.
	Check(ctx context.Context) State
	// ShouldAlert implements the edge trigger for expiry notifications.
	ShouldAlert(valid bool) bool
}

// Gate validates the injected credential against the upstream. It owns the
// alert-once flag for expiry notifications.
type Gate struct {
	log          *slog.Logger
	client       *resty.Client
	cookie       string
	profileURL   string
	favoritesURL string
	alerted      bool
}

// Options overrides probe endpoints and the request timeout, mainly for tests.
type Options struct {
	ProfileURL   string
	FavoritesURL string
	Timeout      time.Duration
}

func NewGate(log *slog.Logger, cookie string, opts Options) *Gate {
	if opts.ProfileURL == "" {
		opts.ProfileURL = defaultProfileURL
	}
	if opts.FavoritesURL == "" {
		opts.FavoritesURL = defaultFavoritesURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeaders(map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/javascript, */*; q=0.01",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		"Referer":         "https://www.jd.com/",
	})
	client.SetHeader("Cookie", cookie)

	return &Gate{
		log:          log,
		client:       client,
		cookie:       cookie,
		profileURL:   opts.ProfileURL,
		favoritesURL: opts.FavoritesURL,
	}
}

// Check probes the session with two independent indicators, then falls back
// to a structural check of the credential itself. The structural fallback is
// optimistic: it only proves the key looks plausible, real validity shows up
// on the first authenticated request. Network failures count as "not valid"
// for that indicator, never as fatal errors.
func (g *Gate) Check(ctx context.Context) State {
	const opn = "session.Check"
	log := g.log.With("op", opn)

	if !strings.Contains(g.cookie, "pt_key") || !strings.Contains(g.cookie, "pt_pin") {
		log.Warn("credential is missing pt_key or pt_pin")
		return State{}
	}

	account := g.accountLabel()

	if ok, nick := g.probeProfile(ctx); ok {
		if nick != "" {
			account = nick
		}
		log.Info("session validated via profile endpoint", "account", account)
		return State{Valid: true, Account: account}
	}

	if g.probeFavorites(ctx) {
		log.Info("session validated via favorites endpoint", "account", account)
		return State{Valid: true, Account: account}
	}

	if m := ptKeyRe.FindStringSubmatch(g.cookie); m != nil && len(m[1]) > minKeyLength {
		log.Info("credential passed shape check only, treating session as usable", "account", account)
		return State{Valid: true, Account: account}
	}

	log.Warn("session failed every indicator")
	return State{}
}

// ShouldAlert returns true exactly once per valid-to-invalid transition and
// rearms when the session recovers.
func (g *Gate) ShouldAlert(valid bool) bool {
	if valid {
		g.alerted = false
		return false
	}
	if g.alerted {
		return false
	}
	g.alerted = true
	return true
}

// accountLabel extracts a display name from the pt_pin cookie field.
func (g *Gate) accountLabel() string {
	m := ptPinRe.FindStringSubmatch(g.cookie)
	if m == nil {
		return ""
	}
	if unescaped, err := url.QueryUnescape(m[1]); err == nil {
		return unescaped
	}
	return m[1]
}

// probeProfile checks the authenticated profile endpoint for a structurally
// valid payload carrying a nickname.
func (g *Gate) probeProfile(ctx context.Context) (bool, string) {
	resp, err := g.client.R().SetContext(ctx).Get(g.profileURL)
	if err != nil {
		g.log.Debug("profile probe failed", "err", err)
		return false, ""
	}
	if resp.StatusCode() != http.StatusOK {
		g.log.Debug("profile probe returned unexpected status", "status", resp.StatusCode())
		return false, ""
	}

	var payload struct {
		NickName string `json:"nickName"`
		RealName string `json:"realName"`
	}
	if err = json.Unmarshal(resp.Body(), &payload); err != nil {
		g.log.Debug("profile probe payload is not parseable", "err", err)
		return false, ""
	}
	if payload.NickName == "" && payload.RealName == "" {
		return false, ""
	}
	if payload.NickName != "" {
		return true, payload.NickName
	}
	return true, payload.RealName
}

// probeFavorites treats any payload with account-shaped data (a zero result
// code or a result/data member) as proof of an authenticated context.
func (g *Gate) probeFavorites(ctx context.Context) bool {
	resp, err := g.client.R().SetContext(ctx).Get(g.favoritesURL)
	if err != nil {
		g.log.Debug("favorites probe failed", "err", err)
		return false
	}
	if resp.StatusCode() != http.StatusOK {
		g.log.Debug("favorites probe returned unexpected status", "status", resp.StatusCode())
		return false
	}

	var payload map[string]any
	if err = json.Unmarshal(resp.Body(), &payload); err != nil {
		g.log.Debug("favorites probe payload is not parseable", "err", err)
		return false
	}
	if code, ok := payload["code"]; ok && fmt.Sprint(code) == "0" {
		return true
	}
	if payload["result"] != nil {
		return true
	}
	_, hasData := payload["data"]
	return hasData
}
