package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/stagecraft/internal/storage"
)

// PutVisualState upserts a visual-state catalog entry.
func (s *Store) PutVisualState(ctx context.Context, state storage.VisualState) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	state.ID = strings.TrimSpace(state.ID)
	if state.ID == "" {
		return fmt.Errorf("visual state id is required")
	}
	state.RegionID = strings.TrimSpace(state.RegionID)
	if state.RegionID == "" {
		return fmt.Errorf("region id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO visual_states (id, region_id, name, description, active)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   region_id = excluded.region_id,
		   name = excluded.name,
		   description = excluded.description,
		   active = excluded.active`,
		state.ID,
		state.RegionID,
		state.Name,
		state.Description,
		boolToInt(state.Active),
	)
	if err != nil {
		return fmt.Errorf("put visual state: %w", err)
	}
	return nil
}

// ListVisualStatesByRegion returns a region's visual-state catalog.
func (s *Store) ListVisualStatesByRegion(ctx context.Context, regionID string) ([]storage.VisualState, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	regionID = strings.TrimSpace(regionID)
	if regionID == "" {
		return nil, fmt.Errorf("region id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, region_id, name, description, active
		 FROM visual_states
		 WHERE region_id = ?
		 ORDER BY name`,
		regionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list visual states: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	states := make([]storage.VisualState, 0)
	for rows.Next() {
		var state storage.VisualState
		var activeInt int64
		if err := rows.Scan(&state.ID, &state.RegionID, &state.Name, &state.Description, &activeInt); err != nil {
			return nil, fmt.Errorf("scan visual state: %w", err)
		}
		state.Active = activeInt != 0
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visual states: %w", err)
	}
	return states, nil
}

// SetActiveVisualState makes one catalog entry the region's active state,
// clearing any previous one in the same transaction.
func (s *Store) SetActiveVisualState(ctx context.Context, regionID, stateID string) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	regionID = strings.TrimSpace(regionID)
	if regionID == "" {
		return fmt.Errorf("region id is required")
	}
	stateID = strings.TrimSpace(stateID)
	if stateID == "" {
		return fmt.Errorf("visual state id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set visual state: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE visual_states SET active = 0 WHERE region_id = ? AND active = 1`,
		regionID,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear visual state: %w", err)
	}

	result, err := tx.ExecContext(
		ctx,
		`UPDATE visual_states SET active = 1 WHERE id = ? AND region_id = ?`,
		stateID,
		regionID,
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("set visual state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("set visual state rows: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set visual state: %w", err)
	}
	return nil
}

// ActiveVisualState returns the region's active visual state.
func (s *Store) ActiveVisualState(ctx context.Context, regionID string) (storage.VisualState, error) {
	if s == nil || s.sqlDB == nil {
		return storage.VisualState{}, fmt.Errorf("storage is not configured")
	}
	regionID = strings.TrimSpace(regionID)
	if regionID == "" {
		return storage.VisualState{}, fmt.Errorf("region id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, region_id, name, description, active
		 FROM visual_states
		 WHERE region_id = ? AND active = 1`,
		regionID,
	)

	var state storage.VisualState
	var activeInt int64
	if err := row.Scan(&state.ID, &state.RegionID, &state.Name, &state.Description, &activeInt); err != nil {
		if err == sql.ErrNoRows {
			return storage.VisualState{}, storage.ErrNotFound
		}
		return storage.VisualState{}, fmt.Errorf("get visual state: %w", err)
	}
	state.Active = activeInt != 0
	return state, nil
}
