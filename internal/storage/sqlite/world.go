package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/stagecraft/internal/storage"
)

// PutWorld upserts a world record.
func (s *Store) PutWorld(ctx context.Context, world storage.World) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	world.ID = strings.TrimSpace(world.ID)
	if world.ID == "" {
		return fmt.Errorf("world id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO worlds (id, name, game_time_seconds, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   game_time_seconds = excluded.game_time_seconds,
		   updated_at = excluded.updated_at`,
		world.ID,
		world.Name,
		world.GameTimeSeconds,
		timeToUnixMillis(world.CreatedAt),
		timeToUnixMillis(world.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put world: %w", err)
	}
	return nil
}

// GetWorld loads a world by ID.
func (s *Store) GetWorld(ctx context.Context, id string) (storage.World, error) {
	if s == nil || s.sqlDB == nil {
		return storage.World{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.World{}, fmt.Errorf("world id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, game_time_seconds, created_at, updated_at
		 FROM worlds
		 WHERE id = ?`,
		id,
	)

	var world storage.World
	var createdAt, updatedAt int64
	if err := row.Scan(&world.ID, &world.Name, &world.GameTimeSeconds, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return storage.World{}, storage.ErrNotFound
		}
		return storage.World{}, fmt.Errorf("get world: %w", err)
	}
	world.CreatedAt = unixMillisToTime(createdAt)
	world.UpdatedAt = unixMillisToTime(updatedAt)
	return world, nil
}

// AdvanceGameTime moves a world's game clock forward and returns the new
// value.
func (s *Store) AdvanceGameTime(ctx context.Context, worldID string, seconds int64) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	worldID = strings.TrimSpace(worldID)
	if worldID == "" {
		return 0, fmt.Errorf("world id is required")
	}
	if seconds < 0 {
		return 0, fmt.Errorf("seconds must be non-negative")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`UPDATE worlds
		 SET game_time_seconds = game_time_seconds + ?
		 WHERE id = ?
		 RETURNING game_time_seconds`,
		seconds,
		worldID,
	)

	var gameTime int64
	if err := row.Scan(&gameTime); err != nil {
		if err == sql.ErrNoRows {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("advance game time: %w", err)
	}
	return gameTime, nil
}

// PutSettings upserts per-world settings.
func (s *Store) PutSettings(ctx context.Context, settings storage.WorldSettings) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	settings.WorldID = strings.TrimSpace(settings.WorldID)
	if settings.WorldID == "" {
		return fmt.Errorf("world id is required")
	}
	if settings.StagingTTLHours <= 0 {
		return fmt.Errorf("staging ttl hours must be positive")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO world_settings (world_id, staging_ttl_hours)
		 VALUES (?, ?)
		 ON CONFLICT(world_id) DO UPDATE SET
		   staging_ttl_hours = excluded.staging_ttl_hours`,
		settings.WorldID,
		settings.StagingTTLHours,
	)
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}

// GetSettings loads per-world settings.
func (s *Store) GetSettings(ctx context.Context, worldID string) (storage.WorldSettings, error) {
	if s == nil || s.sqlDB == nil {
		return storage.WorldSettings{}, fmt.Errorf("storage is not configured")
	}
	worldID = strings.TrimSpace(worldID)
	if worldID == "" {
		return storage.WorldSettings{}, fmt.Errorf("world id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT world_id, staging_ttl_hours FROM world_settings WHERE world_id = ?`,
		worldID,
	)

	var settings storage.WorldSettings
	if err := row.Scan(&settings.WorldID, &settings.StagingTTLHours); err != nil {
		if err == sql.ErrNoRows {
			return storage.WorldSettings{}, storage.ErrNotFound
		}
		return storage.WorldSettings{}, fmt.Errorf("get settings: %w", err)
	}
	return settings, nil
}
