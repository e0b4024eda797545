package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"skuwatch/internal/config"
	"skuwatch/internal/diff"
	"skuwatch/internal/jdapi"
	"skuwatch/internal/models"
	"skuwatch/internal/notifier"
	"skuwatch/internal/repository"
	"skuwatch/internal/session"
)

// Monitor drives the check cycle: session gate, per-product acquisition,
// diff, notification, persistence. It owns the in-memory last-known-state
// map and is its single writer.
type Monitor struct {
	log      *slog.Logger
	gate     session.HealthGate
	source   jdapi.SnapshotSource
	repo     repository.SnapshotRepository
	notify   notifier.Dispatcher
	products []config.Product
	interval time.Duration
	toggles  config.Notify

	states map[string]models.Snapshot
	loaded bool
}

// New creates a Monitor wired to its collaborators.
func New(
	log *slog.Logger,
	gate session.HealthGate,
	source jdapi.SnapshotSource,
	repo repository.SnapshotRepository,
	dispatcher notifier.Dispatcher,
	cfg *config.Config,
) *Monitor {
	return &Monitor{
		log:      log,
		gate:     gate,
		source:   source,
		repo:     repo,
		notify:   dispatcher,
		products: cfg.Products,
		interval: cfg.Interval,
		toggles:  cfg.Notify,
		states:   make(map[string]models.Snapshot),
	}
}

// Run executes check cycles on the configured interval until the context is
// canceled. Nothing short of cancellation stops the loop: a failed cycle is
// reported via an alert and the loop sleeps and tries again.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("monitor started",
		"interval", m.interval, "products", len(m.products))

	if !m.notify.Startup(ctx, m.productNames()) {
		m.log.Warn("startup notification was not delivered")
	}

	for {
		if err := m.runCycle(ctx); err != nil {
			m.log.Error("check cycle failed", "error", err)
			if !m.notify.CycleErrorAlert(ctx, err.Error()) {
				m.log.Warn("cycle error alert was not delivered")
			}
		}

		select {
		case <-ctx.Done():
			m.log.Info("shutdown requested, monitor stopping")
			return
		case <-time.After(m.interval):
		}
	}
}

// runCycle contains panics so a malformed upstream response can never take
// the loop down.
func (m *Monitor) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected cycle failure: %v", r)
		}
	}()
	return m.RunOnce(ctx)
}

// RunOnce performs a single full check cycle: gate, per-product checks,
// persistence. Exposed for the --once run mode.
func (m *Monitor) RunOnce(ctx context.Context) error {
	const opn = "monitor.RunOnce"
	log := m.log.With("op", opn)

	state := m.gate.Check(ctx)
	if m.gate.ShouldAlert(state.Valid) && m.toggles.OnSessionExpired {
		if !m.notify.SessionExpiredAlert(ctx) {
			log.Warn("session expired alert was not delivered")
		}
	}
	if !state.Valid {
		log.Warn("session is not usable, skipping acquisition this cycle")
		return nil
	}

	if !m.loaded {
		stored, err := m.repo.Snapshots(ctx)
		if err != nil {
			return fmt.Errorf("%s: failed to load stored snapshots: %w", opn, err)
		}
		m.states = stored
		m.loaded = true
		log.Info("loaded stored snapshots", "count", len(stored))
	}

	updated := 0
	for _, product := range m.products {
		if m.checkProduct(ctx, product) {
			updated++
		}
	}

	if updated > 0 {
		if err := m.repo.ReplaceSnapshots(ctx, m.states); err != nil {
			return fmt.Errorf("%s: failed to persist snapshots: %w", opn, err)
		}
	}

	log.Info("check cycle complete", "checked", updated)
	return nil
}

// checkProduct acquires, diffs, notifies and records one product. Failures
// are contained here so one broken product never aborts the cycle for the
// others.
func (m *Monitor) checkProduct(ctx context.Context, product config.Product) (updated bool) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("product check failed", "sku", product.SKU, "panic", r)
			updated = false
		}
	}()

	snap := m.source.Snapshot(ctx, product.SKU, product.Name)

	var previous *models.Snapshot
	if prev, ok := m.states[snap.SKU]; ok {
		previous = &prev
	}

	changes := m.gateChanges(diff.Compute(snap, previous))
	if !changes.Empty() {
		m.log.Info("change detected", "sku", snap.SKU, "name", snap.Name)
		if !m.notify.ProductAlert(ctx, snap, changes) {
			m.log.Warn("product notification was not delivered", "sku", snap.SKU)
		}
	}

	// The snapshot replaces the previous one regardless of delivery outcome.
	m.states[snap.SKU] = snap
	return true
}

// gateChanges applies the per-kind notification toggles: a disabled kind
// neither triggers a message nor appears in one.
func (m *Monitor) gateChanges(changes models.ChangeSet) models.ChangeSet {
	if changes.FirstSighting {
		if !m.toggles.OnFirstSighting {
			return models.ChangeSet{}
		}
		return changes
	}
	if !m.toggles.OnPriceChange {
		changes.Price = nil
	}
	if !m.toggles.OnStockChange {
		changes.Stock = nil
		changes.StockText = nil
	}
	if !m.toggles.OnListingChange {
		changes.Listing = nil
	}
	if !m.toggles.OnPresaleChange {
		changes.Presale = nil
	}
	return changes
}

func (m *Monitor) productNames() []string {
	names := make([]string, 0, len(m.products))
	for _, product := range m.products {
		if product.Name != "" {
			names = append(names, product.Name)
			continue
		}
		names = append(names, product.SKU)
	}
	return names
}
