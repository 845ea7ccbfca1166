package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	challengedomain "github.com/louisbranch/stagecraft/internal/challenge/domain"
	"github.com/louisbranch/stagecraft/internal/storage"
)

// PutChallenge upserts a challenge definition. Outcome descriptions and
// triggers are stored as one JSON column.
func (s *Store) PutChallenge(ctx context.Context, challenge challengedomain.Challenge) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	challenge.ID = strings.TrimSpace(challenge.ID)
	if challenge.ID == "" {
		return fmt.Errorf("challenge id is required")
	}

	outcomesJSON, err := json.Marshal(challenge.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal challenge outcomes: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO challenges (id, world_id, name, skill, difficulty, dice_formula, outcomes_json, disabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   world_id = excluded.world_id,
		   name = excluded.name,
		   skill = excluded.skill,
		   difficulty = excluded.difficulty,
		   dice_formula = excluded.dice_formula,
		   outcomes_json = excluded.outcomes_json,
		   disabled = excluded.disabled,
		   updated_at = excluded.updated_at`,
		challenge.ID,
		challenge.WorldID,
		challenge.Name,
		challenge.Skill,
		challenge.Difficulty,
		challenge.DiceFormula,
		string(outcomesJSON),
		boolToInt(challenge.Disabled),
		timeToUnixMillis(challenge.CreatedAt),
		timeToUnixMillis(challenge.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

// GetChallenge loads a challenge by ID.
func (s *Store) GetChallenge(ctx context.Context, id string) (challengedomain.Challenge, error) {
	if s == nil || s.sqlDB == nil {
		return challengedomain.Challenge{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return challengedomain.Challenge{}, fmt.Errorf("challenge id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, world_id, name, skill, difficulty, dice_formula, outcomes_json, disabled, created_at, updated_at
		 FROM challenges
		 WHERE id = ?`,
		id,
	)
	return scanChallenge(row)
}

// ListChallengesByWorld returns all challenges in a world ordered by name.
func (s *Store) ListChallengesByWorld(ctx context.Context, worldID string) ([]challengedomain.Challenge, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	worldID = strings.TrimSpace(worldID)
	if worldID == "" {
		return nil, fmt.Errorf("world id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, world_id, name, skill, difficulty, dice_formula, outcomes_json, disabled, created_at, updated_at
		 FROM challenges
		 WHERE world_id = ?
		 ORDER BY name`,
		worldID,
	)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	challenges := make([]challengedomain.Challenge, 0)
	for rows.Next() {
		challenge, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, challenge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate challenges: %w", err)
	}
	return challenges, nil
}

// SetChallengeActive flips the disabled flag on a stored challenge.
func (s *Store) SetChallengeActive(ctx context.Context, id string, active bool) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("challenge id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE challenges SET disabled = ? WHERE id = ?`,
		boolToInt(!active),
		id,
	)
	if err != nil {
		return fmt.Errorf("set challenge active: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set challenge active: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanChallenge(row rowScanner) (challengedomain.Challenge, error) {
	var challenge challengedomain.Challenge
	var outcomesJSON string
	var disabled int64
	var createdAt, updatedAt int64
	if err := row.Scan(
		&challenge.ID,
		&challenge.WorldID,
		&challenge.Name,
		&challenge.Skill,
		&challenge.Difficulty,
		&challenge.DiceFormula,
		&outcomesJSON,
		&disabled,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return challengedomain.Challenge{}, storage.ErrNotFound
		}
		return challengedomain.Challenge{}, fmt.Errorf("scan challenge: %w", err)
	}

	if err := json.Unmarshal([]byte(outcomesJSON), &challenge.Outcomes); err != nil {
		return challengedomain.Challenge{}, fmt.Errorf("unmarshal challenge outcomes: %w", err)
	}
	challenge.Disabled = disabled != 0
	challenge.CreatedAt = unixMillisToTime(createdAt)
	challenge.UpdatedAt = unixMillisToTime(updatedAt)
	return challenge, nil
}
