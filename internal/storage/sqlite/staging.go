package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	stagingdomain "github.com/louisbranch/stagecraft/internal/staging/domain"
	"github.com/louisbranch/stagecraft/internal/storage"
)

// PutStaging inserts a staging snapshot. Snapshots are immutable once
// written; only the active flag changes afterwards.
func (s *Store) PutStaging(ctx context.Context, staging stagingdomain.Staging) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	staging.ID = strings.TrimSpace(staging.ID)
	if staging.ID == "" {
		return fmt.Errorf("staging id is required")
	}
	staging.RegionID = strings.TrimSpace(staging.RegionID)
	if staging.RegionID == "" {
		return fmt.Errorf("region id is required")
	}

	npcs := staging.Npcs
	if npcs == nil {
		npcs = []stagingdomain.StagedNpc{}
	}
	npcsJSON, err := json.Marshal(npcs)
	if err != nil {
		return fmt.Errorf("marshal staged npcs: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO stagings (id, region_id, source, approved_by, ttl_hours, game_time_seconds, npcs_json, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		staging.ID,
		staging.RegionID,
		staging.Source.String(),
		staging.ApprovedBy,
		staging.TTLHours,
		staging.GameTimeSeconds,
		string(npcsJSON),
		boolToInt(staging.Active),
		timeToUnixMillis(staging.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put staging: %w", err)
	}
	return nil
}

// ActivateStaging makes the given snapshot the region's current one. The
// previous active snapshot is deactivated but retained. Both updates run
// in one transaction.
func (s *Store) ActivateStaging(ctx context.Context, regionID, stagingID string) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	regionID = strings.TrimSpace(regionID)
	if regionID == "" {
		return fmt.Errorf("region id is required")
	}
	stagingID = strings.TrimSpace(stagingID)
	if stagingID == "" {
		return fmt.Errorf("staging id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate staging: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE stagings SET active = 0 WHERE region_id = ? AND active = 1`,
		regionID,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("deactivate staging: %w", err)
	}

	result, err := tx.ExecContext(
		ctx,
		`UPDATE stagings SET active = 1 WHERE id = ? AND region_id = ?`,
		stagingID,
		regionID,
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("activate staging: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("activate staging rows: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activate staging: %w", err)
	}
	return nil
}

// ActiveStaging returns the region's current snapshot if it is still fresh
// at the given game time. A stale or missing snapshot yields ErrNotFound.
func (s *Store) ActiveStaging(ctx context.Context, regionID string, gameTimeSeconds int64) (stagingdomain.Staging, error) {
	staging, err := s.queryStaging(
		ctx,
		`SELECT id, region_id, source, approved_by, ttl_hours, game_time_seconds, npcs_json, active, created_at
		 FROM stagings
		 WHERE region_id = ? AND active = 1`,
		regionID,
	)
	if err != nil {
		return stagingdomain.Staging{}, err
	}
	if staging.Expired(gameTimeSeconds) {
		return stagingdomain.Staging{}, storage.ErrNotFound
	}
	return staging, nil
}

// LatestStaging returns the most recently created snapshot for a region
// regardless of freshness.
func (s *Store) LatestStaging(ctx context.Context, regionID string) (stagingdomain.Staging, error) {
	return s.queryStaging(
		ctx,
		`SELECT id, region_id, source, approved_by, ttl_hours, game_time_seconds, npcs_json, active, created_at
		 FROM stagings
		 WHERE region_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		regionID,
	)
}

func (s *Store) queryStaging(ctx context.Context, query, regionID string) (stagingdomain.Staging, error) {
	if s == nil || s.sqlDB == nil {
		return stagingdomain.Staging{}, fmt.Errorf("storage is not configured")
	}
	regionID = strings.TrimSpace(regionID)
	if regionID == "" {
		return stagingdomain.Staging{}, fmt.Errorf("region id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, query, regionID)

	var staging stagingdomain.Staging
	var source, npcsJSON string
	var activeInt, createdAt int64
	if err := row.Scan(
		&staging.ID,
		&staging.RegionID,
		&source,
		&staging.ApprovedBy,
		&staging.TTLHours,
		&staging.GameTimeSeconds,
		&npcsJSON,
		&activeInt,
		&createdAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return stagingdomain.Staging{}, storage.ErrNotFound
		}
		return stagingdomain.Staging{}, fmt.Errorf("get staging: %w", err)
	}

	staging.Source = stagingdomain.ParseSource(source)
	if err := json.Unmarshal([]byte(npcsJSON), &staging.Npcs); err != nil {
		return stagingdomain.Staging{}, fmt.Errorf("unmarshal staged npcs: %w", err)
	}
	staging.Active = activeInt != 0
	staging.CreatedAt = unixMillisToTime(createdAt)
	return staging, nil
}
