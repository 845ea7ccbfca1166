package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	rosterdomain "github.com/louisbranch/stagecraft/internal/roster/domain"
	"github.com/louisbranch/stagecraft/internal/storage"
)

// PutCharacter upserts a character record. The skill sheet is stored as a
// JSON object column.
func (s *Store) PutCharacter(ctx context.Context, character rosterdomain.Character) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	character.ID = strings.TrimSpace(character.ID)
	if character.ID == "" {
		return fmt.Errorf("character id is required")
	}

	sheet := character.Sheet
	if sheet == nil {
		sheet = map[string]int{}
	}
	sheetJSON, err := json.Marshal(sheet)
	if err != nil {
		return fmt.Errorf("marshal character sheet: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO characters (id, world_id, name, role, sheet_json, mood, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   world_id = excluded.world_id,
		   name = excluded.name,
		   role = excluded.role,
		   sheet_json = excluded.sheet_json,
		   mood = excluded.mood,
		   updated_at = excluded.updated_at`,
		character.ID,
		character.WorldID,
		character.Name,
		character.Role.String(),
		string(sheetJSON),
		character.Mood,
		timeToUnixMillis(character.CreatedAt),
		timeToUnixMillis(character.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put character: %w", err)
	}
	return nil
}

// GetCharacter loads a character by ID.
func (s *Store) GetCharacter(ctx context.Context, id string) (rosterdomain.Character, error) {
	if s == nil || s.sqlDB == nil {
		return rosterdomain.Character{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return rosterdomain.Character{}, fmt.Errorf("character id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, world_id, name, role, sheet_json, mood, created_at, updated_at
		 FROM characters
		 WHERE id = ?`,
		id,
	)
	return scanCharacter(row)
}

// ListNpcsByWorld returns all director-controlled characters in a world.
func (s *Store) ListNpcsByWorld(ctx context.Context, worldID string) ([]rosterdomain.Character, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	worldID = strings.TrimSpace(worldID)
	if worldID == "" {
		return nil, fmt.Errorf("world id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, world_id, name, role, sheet_json, mood, created_at, updated_at
		 FROM characters
		 WHERE world_id = ? AND role = ?
		 ORDER BY name`,
		worldID,
		rosterdomain.RoleNPC.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list npcs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	characters := make([]rosterdomain.Character, 0)
	for rows.Next() {
		character, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		characters = append(characters, character)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate npcs: %w", err)
	}
	return characters, nil
}

// PutRegionTie upserts a character's relationship to a region.
func (s *Store) PutRegionTie(ctx context.Context, tie rosterdomain.RegionTie) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	tie.CharacterID = strings.TrimSpace(tie.CharacterID)
	if tie.CharacterID == "" {
		return fmt.Errorf("character id is required")
	}
	tie.RegionID = strings.TrimSpace(tie.RegionID)
	if tie.RegionID == "" {
		return fmt.Errorf("region id is required")
	}
	if tie.Kind == rosterdomain.RelationUnspecified {
		return fmt.Errorf("relation kind is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO region_ties (character_id, region_id, kind, shift, frequency, time_of_day)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(character_id, region_id, kind) DO UPDATE SET
		   shift = excluded.shift,
		   frequency = excluded.frequency,
		   time_of_day = excluded.time_of_day`,
		tie.CharacterID,
		tie.RegionID,
		tie.Kind.String(),
		tie.Shift,
		tie.Frequency,
		tie.TimeOfDay,
	)
	if err != nil {
		return fmt.Errorf("put region tie: %w", err)
	}
	return nil
}

// ListTiesByRegion returns all character ties declared for a region.
func (s *Store) ListTiesByRegion(ctx context.Context, regionID string) ([]rosterdomain.RegionTie, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	regionID = strings.TrimSpace(regionID)
	if regionID == "" {
		return nil, fmt.Errorf("region id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT character_id, region_id, kind, shift, frequency, time_of_day
		 FROM region_ties
		 WHERE region_id = ?
		 ORDER BY character_id, kind`,
		regionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list region ties: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	ties := make([]rosterdomain.RegionTie, 0)
	for rows.Next() {
		var tie rosterdomain.RegionTie
		var kind string
		if err := rows.Scan(&tie.CharacterID, &tie.RegionID, &kind, &tie.Shift, &tie.Frequency, &tie.TimeOfDay); err != nil {
			return nil, fmt.Errorf("scan region tie: %w", err)
		}
		tie.Kind = rosterdomain.ParseRelationKind(kind)
		ties = append(ties, tie)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate region ties: %w", err)
	}
	return ties, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row rowScanner) (rosterdomain.Character, error) {
	var character rosterdomain.Character
	var role, sheetJSON string
	var createdAt, updatedAt int64
	if err := row.Scan(
		&character.ID,
		&character.WorldID,
		&character.Name,
		&role,
		&sheetJSON,
		&character.Mood,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return rosterdomain.Character{}, storage.ErrNotFound
		}
		return rosterdomain.Character{}, fmt.Errorf("scan character: %w", err)
	}

	character.Role = rosterdomain.ParseRole(role)
	if err := json.Unmarshal([]byte(sheetJSON), &character.Sheet); err != nil {
		return rosterdomain.Character{}, fmt.Errorf("unmarshal character sheet: %w", err)
	}
	character.CreatedAt = unixMillisToTime(createdAt)
	character.UpdatedAt = unixMillisToTime(updatedAt)
	return character, nil
}
