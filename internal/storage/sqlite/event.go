package sqlite

import (
	"context"
	"fmt"
	"strings"

	challengedomain "github.com/louisbranch/stagecraft/internal/challenge/domain"
)

// AppendEvent inserts an immutable world event.
func (s *Store) AppendEvent(ctx context.Context, event challengedomain.Event) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	event.ID = strings.TrimSpace(event.ID)
	if event.ID == "" {
		return fmt.Errorf("event id is required")
	}
	event.WorldID = strings.TrimSpace(event.WorldID)
	if event.WorldID == "" {
		return fmt.Errorf("world id is required")
	}
	if !event.Type.IsValid() {
		return fmt.Errorf("event type %q is not supported", event.Type)
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO events (id, world_id, type, challenge_id, character_id, payload_json, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.WorldID,
		string(event.Type),
		event.ChallengeID,
		event.CharacterID,
		string(event.PayloadJSON),
		timeToUnixMillis(event.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEventsByWorld returns the most recent events for a world, newest
// first. A non-positive limit returns every event.
func (s *Store) ListEventsByWorld(ctx context.Context, worldID string, limit int) ([]challengedomain.Event, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	worldID = strings.TrimSpace(worldID)
	if worldID == "" {
		return nil, fmt.Errorf("world id is required")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, world_id, type, challenge_id, character_id, payload_json, timestamp
		 FROM events
		 WHERE world_id = ?
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`,
		worldID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	events := make([]challengedomain.Event, 0)
	for rows.Next() {
		var event challengedomain.Event
		var eventType, payloadJSON string
		var timestamp int64
		if err := rows.Scan(
			&event.ID,
			&event.WorldID,
			&eventType,
			&event.ChallengeID,
			&event.CharacterID,
			&payloadJSON,
			&timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Type = challengedomain.EventType(eventType)
		if payloadJSON != "" {
			event.PayloadJSON = []byte(payloadJSON)
		}
		event.Timestamp = unixMillisToTime(timestamp)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
