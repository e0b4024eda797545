package repository

import (
	"context"

	"skuwatch/internal/models"
)

// SnapshotRepository is the durable last-known-state store. The monitor
// service is its single writer: the full map is read once at startup and
// rewritten atomically after each cycle that produced snapshots.
type SnapshotRepository interface {
	// Snapshots loads every stored snapshot keyed by sku. An empty store
	// yields an empty map, not an error.
	Snapshots(ctx context.Context) (map[string]models.Snapshot, error)
	// ReplaceSnapshots atomically replaces the stored map with the given one.
	ReplaceSnapshots(ctx context.Context, snapshots map[string]models.Snapshot) error
}
