// Package floor manages table occupancy and table groups. Tables that
// share a group id are one unit: every status change is applied to all
// members.
package floor

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/rs/zerolog"
)

// Store defines the persistence methods the floor manager needs.
type Store interface {
	GetTable(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Table, error)
	ListTables(ctx context.Context, restaurantID uuid.UUID) ([]model.Table, error)
	ListGroupTables(ctx context.Context, restaurantID uuid.UUID, groupID uuid.UUID) ([]model.Table, error)
	// UpdateTable writes status, order, waiter and group of t only while the
	// stored version still equals t.Version.
	UpdateTable(ctx context.Context, t model.Table) (model.Table, error)
}

// Manager applies occupancy operations to tables and their groups.
type Manager struct {
	store  Store
	logger zerolog.Logger
	newID  func() uuid.UUID
}

// NewManager creates a new Manager.
func NewManager(store Store, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger.With().Str("component", "floor").Logger(),
		newID:  uuid.New,
	}
}

// List returns every table of a restaurant.
func (m *Manager) List(ctx context.Context, restaurantID uuid.UUID) ([]model.Table, error) {
	tables, err := m.store.ListTables(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// Members returns the table and every table grouped with it, by id.
func (m *Manager) Members(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error) {
	t, err := m.store.GetTable(ctx, restaurantID, tableID)
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}
	if t.GroupID == nil {
		return []model.Table{t}, nil
	}
	members, err := m.store.ListGroupTables(ctx, restaurantID, *t.GroupID)
	if err != nil {
		return nil, fmt.Errorf("list group tables: %w", err)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

// Openable returns the members of tableID if all of them are FREE.
func (m *Manager) Openable(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error) {
	members, err := m.Members(ctx, restaurantID, tableID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(members, enum.TableStatusFree); err != nil {
		return nil, err
	}
	return members, nil
}

// Occupy links members, as returned by Openable, to orderID.
// A member changed since it was read fails its compare-and-swap.
func (m *Manager) Occupy(ctx context.Context, members []model.Table, orderID int64, waiterID *int64) ([]model.Table, error) {
	return m.apply(ctx, "open table", members, func(t model.Table) (model.Table, bool) {
		t.Status = enum.TableStatusOccupied
		t.OrderID = &orderID
		t.WaiterID = waiterID
		return t, true
	})
}

// RequestCheck marks the group as waiting for the bill.
func (m *Manager) RequestCheck(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error) {
	members, err := m.Members(ctx, restaurantID, tableID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(members, enum.TableStatusOccupied, enum.TableStatusNeedsAttention, enum.TableStatusRequestingCheck); err != nil {
		return nil, err
	}
	return m.apply(ctx, "request check", members, func(t model.Table) (model.Table, bool) {
		if t.Status == enum.TableStatusRequestingCheck {
			return t, false
		}
		t.Status = enum.TableStatusRequestingCheck
		return t, true
	})
}

// Flag marks an occupied group as needing a waiter.
func (m *Manager) Flag(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error) {
	members, err := m.Members(ctx, restaurantID, tableID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(members, enum.TableStatusOccupied, enum.TableStatusNeedsAttention); err != nil {
		return nil, err
	}
	return m.apply(ctx, "flag table", members, func(t model.Table) (model.Table, bool) {
		if t.Status == enum.TableStatusNeedsAttention {
			return t, false
		}
		t.Status = enum.TableStatusNeedsAttention
		return t, true
	})
}

// MarkNeedsCleaning moves every non-FREE member to NEEDS_CLEANING.
func (m *Manager) MarkNeedsCleaning(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error) {
	members, err := m.Members(ctx, restaurantID, tableID)
	if err != nil {
		return nil, err
	}
	return m.apply(ctx, "mark needs cleaning", members, func(t model.Table) (model.Table, bool) {
		if t.Status == enum.TableStatusFree || t.Status == enum.TableStatusNeedsCleaning {
			return t, false
		}
		t.Status = enum.TableStatusNeedsCleaning
		return t, true
	})
}

// Clean frees the group and clears its order and waiter.
func (m *Manager) Clean(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error) {
	members, err := m.Members(ctx, restaurantID, tableID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(members, enum.TableStatusNeedsCleaning); err != nil {
		return nil, err
	}
	return m.apply(ctx, "clean table", members, func(t model.Table) (model.Table, bool) {
		t.Status = enum.TableStatusFree
		t.OrderID = nil
		t.WaiterID = nil
		return t, true
	})
}

// AssignWaiter sets the waiter of every member. A nil waiter unassigns.
func (m *Manager) AssignWaiter(ctx context.Context, restaurantID uuid.UUID, tableID int64, waiterID *int64) ([]model.Table, error) {
	members, err := m.Members(ctx, restaurantID, tableID)
	if err != nil {
		return nil, err
	}
	return m.apply(ctx, "assign waiter", members, func(t model.Table) (model.Table, bool) {
		t.WaiterID = waiterID
		return t, true
	})
}

// Join groups FREE, ungrouped tables under a fresh group id. Every table is
// checked before anything is written, so a rejected join changes nothing.
func (m *Manager) Join(ctx context.Context, restaurantID uuid.UUID, tableIDs []int64) ([]model.Table, error) {
	ids := dedupe(tableIDs)
	if len(ids) < 2 {
		return nil, apperr.Invalid("joining needs at least two distinct tables")
	}

	tables := make([]model.Table, 0, len(ids))
	for _, id := range ids {
		t, err := m.store.GetTable(ctx, restaurantID, id)
		if err != nil {
			return nil, fmt.Errorf("get table: %w", err)
		}
		if t.GroupID != nil {
			return nil, apperr.Invalid("table %s is already grouped", t.Number)
		}
		tables = append(tables, t)
	}
	if err := requireStatus(tables, enum.TableStatusFree); err != nil {
		return nil, err
	}

	groupID := m.newID()
	return m.apply(ctx, "join tables", tables, func(t model.Table) (model.Table, bool) {
		t.GroupID = &groupID
		return t, true
	})
}

// Ungroup clears the group id of every member of tableID's group.
func (m *Manager) Ungroup(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error) {
	members, err := m.Members(ctx, restaurantID, tableID)
	if err != nil {
		return nil, err
	}
	if members[0].GroupID == nil {
		return nil, apperr.Invalid("table %s is not grouped", members[0].Number)
	}
	return m.apply(ctx, "ungroup tables", members, func(t model.Table) (model.Table, bool) {
		t.GroupID = nil
		return t, true
	})
}

// apply writes members one by one. The first failure after at least one
// successful write is a *apperr.PartialGroupUpdateError; earlier writes
// stay in place.
func (m *Manager) apply(ctx context.Context, op string, members []model.Table, mutate func(model.Table) (model.Table, bool)) ([]model.Table, error) {
	out := make([]model.Table, 0, len(members))
	var updated []int64
	for _, t := range members {
		next, write := mutate(t)
		if !write {
			out = append(out, t)
			continue
		}
		saved, err := m.store.UpdateTable(ctx, next)
		if err != nil {
			if len(updated) == 0 {
				return nil, fmt.Errorf("%s: table %d: %w", op, t.ID, err)
			}
			m.logger.Error().Err(err).Str("op", op).Ints64("updated", updated).Int64("failed", t.ID).
				Msg("group update left partially applied")
			return nil, &apperr.PartialGroupUpdateError{Op: op, Updated: updated, Failed: t.ID, Err: err}
		}
		updated = append(updated, saved.ID)
		out = append(out, saved)
	}
	return out, nil
}

func requireStatus(tables []model.Table, allowed ...enum.TableStatus) error {
	for _, t := range tables {
		ok := false
		for _, s := range allowed {
			if t.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return apperr.Invalid("table %s is %s", t.Number, t.Status)
		}
	}
	return nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
