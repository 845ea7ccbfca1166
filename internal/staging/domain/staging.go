// Package domain holds staging snapshots: which NPCs are present in a
// region, who approved the snapshot, and how long it stays fresh.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/stagecraft/internal/id"
)

// Source records how a staging snapshot came to be approved.
type Source int

const (
	// SourceUnspecified represents an invalid source value.
	SourceUnspecified Source = iota
	// SourceDirectorApproved indicates an explicit director decision.
	SourceDirectorApproved
	// SourceAutoApproved indicates a timeout fallback approval.
	SourceAutoApproved
	// SourceRuleBased indicates a snapshot built purely from declared ties.
	SourceRuleBased
)

func (s Source) String() string {
	switch s {
	case SourceDirectorApproved:
		return "director_approved"
	case SourceAutoApproved:
		return "auto_approved"
	case SourceRuleBased:
		return "rule_based"
	default:
		return "unspecified"
	}
}

// ParseSource parses the textual source form. Unknown values map to
// SourceUnspecified.
func ParseSource(s string) Source {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "director_approved":
		return SourceDirectorApproved
	case "auto_approved":
		return SourceAutoApproved
	case "rule_based":
		return SourceRuleBased
	default:
		return SourceUnspecified
	}
}

var (
	// ErrEmptyRegionID indicates a missing region ID.
	ErrEmptyRegionID = errors.New("region id is required")
	// ErrInvalidTTL indicates a non-positive staging TTL.
	ErrInvalidTTL = errors.New("staging ttl must be positive")
	// ErrInvalidSource indicates an unspecified staging source.
	ErrInvalidSource = errors.New("staging source is required")
)

// StagedNpc records one NPC's presence in a staging snapshot.
type StagedNpc struct {
	CharacterID string
	Name        string
	Present     bool
	Hidden      bool
	Mood        string
	Reasoning   string
}

// Staging is an approved presence snapshot for a region. TTL is measured
// against world game time: the snapshot expires once the game clock moves
// TTLHours past GameTimeSeconds.
type Staging struct {
	ID              string
	RegionID        string
	Source          Source
	ApprovedBy      string
	TTLHours        int
	GameTimeSeconds int64
	Npcs            []StagedNpc
	Active          bool
	CreatedAt       time.Time
}

// CreateStagingInput describes the data needed to build a staging snapshot.
type CreateStagingInput struct {
	RegionID        string
	Source          Source
	ApprovedBy      string
	TTLHours        int
	GameTimeSeconds int64
	Npcs            []StagedNpc
}

// CreateStaging builds a staging snapshot with a generated ID and
// timestamp. The NPC list may be empty; a region can legitimately stage as
// deserted.
func CreateStaging(input CreateStagingInput, now func() time.Time, idGenerator func() (string, error)) (Staging, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.RegionID = strings.TrimSpace(input.RegionID)
	if input.RegionID == "" {
		return Staging{}, ErrEmptyRegionID
	}
	if input.TTLHours <= 0 {
		return Staging{}, ErrInvalidTTL
	}
	if input.Source == SourceUnspecified {
		return Staging{}, ErrInvalidSource
	}

	stagingID, err := idGenerator()
	if err != nil {
		return Staging{}, fmt.Errorf("generate staging id: %w", err)
	}

	return Staging{
		ID:              stagingID,
		RegionID:        input.RegionID,
		Source:          input.Source,
		ApprovedBy:      input.ApprovedBy,
		TTLHours:        input.TTLHours,
		GameTimeSeconds: input.GameTimeSeconds,
		Npcs:            input.Npcs,
		CreatedAt:       now().UTC(),
	}, nil
}

// ExpiresAtGameTime returns the game-time second at which the snapshot
// goes stale.
func (s Staging) ExpiresAtGameTime() int64 {
	return s.GameTimeSeconds + int64(s.TTLHours)*3600
}

// Expired reports whether the snapshot is stale at the given game time.
func (s Staging) Expired(gameTimeSeconds int64) bool {
	return gameTimeSeconds >= s.ExpiresAtGameTime()
}

// VisibleNpcs returns the NPCs that players should see: present and not
// hidden. Hidden NPCs stay in the snapshot for the director's benefit.
func (s Staging) VisibleNpcs() []StagedNpc {
	visible := make([]StagedNpc, 0, len(s.Npcs))
	for _, npc := range s.Npcs {
		if npc.Present && !npc.Hidden {
			visible = append(visible, npc)
		}
	}
	return visible
}
