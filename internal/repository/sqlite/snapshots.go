package sqlite

import (
	"context"
	"fmt"
	"time"

	"skuwatch/internal/models"
)

// Timestamps are stored as sortable text.
const timeFormat = time.RFC3339Nano

// Snapshots implements repository.SnapshotRepository by reading the full
// stored map.
func (r *Repository) Snapshots(ctx context.Context) (map[string]models.Snapshot, error) {
	const opn = "repository.sqlite.Snapshots"

	rows, err := r.db.QueryContext(ctx,
		"SELECT sku, name, price, list_price, in_stock, stock_text, listed, presale_note, url, checked_at FROM snapshots")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query snapshots: %w", opn, err)
	}
	defer rows.Close()

	snapshots := make(map[string]models.Snapshot)
	for rows.Next() {
		var snap models.Snapshot
		var checkedAt string
		if err = rows.Scan(
			&snap.SKU, &snap.Name, &snap.Price, &snap.ListPrice,
			&snap.InStock, &snap.StockText, &snap.Listed,
			&snap.PresaleNote, &snap.URL, &checkedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: failed to scan snapshot: %w", opn, err)
		}

		snap.CheckedAt, err = time.Parse(timeFormat, checkedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid checked_at for sku %s: %w", opn, snap.SKU, err)
		}

		snapshots[snap.SKU] = snap
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration error: %w", opn, err)
	}

	return snapshots, nil
}

// ReplaceSnapshots atomically rewrites the stored map inside one
// transaction, so a crash mid-write can never leave a partial state behind.
func (r *Repository) ReplaceSnapshots(ctx context.Context, snapshots map[string]models.Snapshot) error {
	const opn = "repository.sqlite.ReplaceSnapshots"

	tx, err := r.db.BeginTx(ctx, nil) //nolint:varnamelen // tx its a default naming for transaction
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", opn, err)
	}
	defer tx.Rollback() //nolint:errcheck // Because in Go, it's common practice to ignore the Rollback() error in a defer, since if the transaction committed successfully, the rollback would just return sql.ErrTxDone and it's not useful to log or act on.

	// Completely clear the table to record the new current state.
	_, err = tx.ExecContext(ctx, "DELETE FROM snapshots")
	if err != nil {
		return fmt.Errorf("%s: failed to delete old snapshots: %w", opn, err)
	}

	stmt, err := tx.PrepareContext(
		ctx,
		"INSERT INTO snapshots (sku, name, price, list_price, in_stock, stock_text, listed, presale_note, url, checked_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("%s: failed to prepare insert statement: %w", opn, err)
	}
	defer stmt.Close()

	for _, snap := range snapshots {
		if _, err = stmt.ExecContext(ctx,
			snap.SKU, snap.Name, snap.Price, snap.ListPrice,
			snap.InStock, snap.StockText, snap.Listed,
			snap.PresaleNote, snap.URL, snap.CheckedAt.UTC().Format(timeFormat),
		); err != nil {
			return fmt.Errorf("%s: failed to insert snapshot for sku %s: %w", opn, snap.SKU, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", opn, err)
	}

	return nil
}
