// Package mocks provides testify mocks for the monitor service seams.
package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"skuwatch/internal/models"
	"skuwatch/internal/session"
)

// SnapshotSource mocks jdapi.SnapshotSource.
type SnapshotSource struct {
	mock.Mock
}

func NewSnapshotSource(t *testing.T) *SnapshotSource {
	t.Helper()
	m := &SnapshotSource{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *SnapshotSource) Snapshot(ctx context.Context, sku, hintName string) models.Snapshot {
	args := m.Called(ctx, sku, hintName)
	return args.Get(0).(models.Snapshot)
}

// HealthGate mocks session.HealthGate.
type HealthGate struct {
	mock.Mock
}

func NewHealthGate(t *testing.T) *HealthGate {
	t.Helper()
	m := &HealthGate{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *HealthGate) Check(ctx context.Context) session.State {
	args := m.Called(ctx)
	return args.Get(0).(session.State)
}

func (m *HealthGate) ShouldAlert(valid bool) bool {
	return m.Called(valid).Bool(0)
}

// SnapshotRepository mocks repository.SnapshotRepository.
type SnapshotRepository struct {
	mock.Mock
}

func NewSnapshotRepository(t *testing.T) *SnapshotRepository {
	t.Helper()
	m := &SnapshotRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *SnapshotRepository) Snapshots(ctx context.Context) (map[string]models.Snapshot, error) {
	args := m.Called(ctx)
	var snapshots map[string]models.Snapshot
	if args.Get(0) != nil {
		snapshots = args.Get(0).(map[string]models.Snapshot)
	}
	return snapshots, args.Error(1)
}

func (m *SnapshotRepository) ReplaceSnapshots(ctx context.Context, snapshots map[string]models.Snapshot) error {
	return m.Called(ctx, snapshots).Error(0)
}

// Dispatcher mocks notifier.Dispatcher.
type Dispatcher struct {
	mock.Mock
}

func NewDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	m := &Dispatcher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Dispatcher) ProductAlert(ctx context.Context, snap models.Snapshot, changes models.ChangeSet) bool {
	return m.Called(ctx, snap, changes).Bool(0)
}

func (m *Dispatcher) SessionExpiredAlert(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *Dispatcher) CycleErrorAlert(ctx context.Context, detail string) bool {
	return m.Called(ctx, detail).Bool(0)
}

func (m *Dispatcher) Startup(ctx context.Context, productNames []string) bool {
	return m.Called(ctx, productNames).Bool(0)
}
