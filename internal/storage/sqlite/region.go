package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/stagecraft/internal/storage"
)

// PutLocation upserts a location record.
func (s *Store) PutLocation(ctx context.Context, location storage.Location) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	location.ID = strings.TrimSpace(location.ID)
	if location.ID == "" {
		return fmt.Errorf("location id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO locations (id, world_id, name)
		 VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   world_id = excluded.world_id,
		   name = excluded.name`,
		location.ID,
		location.WorldID,
		location.Name,
	)
	if err != nil {
		return fmt.Errorf("put location: %w", err)
	}
	return nil
}

// GetLocation loads a location by ID.
func (s *Store) GetLocation(ctx context.Context, id string) (storage.Location, error) {
	if s == nil || s.sqlDB == nil {
		return storage.Location{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Location{}, fmt.Errorf("location id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, world_id, name FROM locations WHERE id = ?`,
		id,
	)

	var location storage.Location
	if err := row.Scan(&location.ID, &location.WorldID, &location.Name); err != nil {
		if err == sql.ErrNoRows {
			return storage.Location{}, storage.ErrNotFound
		}
		return storage.Location{}, fmt.Errorf("get location: %w", err)
	}
	return location, nil
}

// PutRegion upserts a region record.
func (s *Store) PutRegion(ctx context.Context, region storage.Region) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	region.ID = strings.TrimSpace(region.ID)
	if region.ID == "" {
		return fmt.Errorf("region id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO regions (id, world_id, location_id, name)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   world_id = excluded.world_id,
		   location_id = excluded.location_id,
		   name = excluded.name`,
		region.ID,
		region.WorldID,
		region.LocationID,
		region.Name,
	)
	if err != nil {
		return fmt.Errorf("put region: %w", err)
	}
	return nil
}

// GetRegion loads a region by ID.
func (s *Store) GetRegion(ctx context.Context, id string) (storage.Region, error) {
	if s == nil || s.sqlDB == nil {
		return storage.Region{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Region{}, fmt.Errorf("region id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, world_id, location_id, name FROM regions WHERE id = ?`,
		id,
	)

	var region storage.Region
	if err := row.Scan(&region.ID, &region.WorldID, &region.LocationID, &region.Name); err != nil {
		if err == sql.ErrNoRows {
			return storage.Region{}, storage.ErrNotFound
		}
		return storage.Region{}, fmt.Errorf("get region: %w", err)
	}
	return region, nil
}

// ListRegionsByWorld returns all regions in a world ordered by name.
func (s *Store) ListRegionsByWorld(ctx context.Context, worldID string) ([]storage.Region, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	worldID = strings.TrimSpace(worldID)
	if worldID == "" {
		return nil, fmt.Errorf("world id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, world_id, location_id, name
		 FROM regions
		 WHERE world_id = ?
		 ORDER BY name`,
		worldID,
	)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	regions := make([]storage.Region, 0)
	for rows.Next() {
		var region storage.Region
		if err := rows.Scan(&region.ID, &region.WorldID, &region.LocationID, &region.Name); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		regions = append(regions, region)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regions: %w", err)
	}
	return regions, nil
}
