// Package storage defines the persistence contracts for world state.
package storage

import (
	"context"
	"errors"
	"time"

	challengedomain "github.com/louisbranch/stagecraft/internal/challenge/domain"
	rosterdomain "github.com/louisbranch/stagecraft/internal/roster/domain"
	stagingdomain "github.com/louisbranch/stagecraft/internal/staging/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// World is the top-level container for a game. GameTimeSeconds is the
// in-fiction clock, advanced by the director; staging freshness is
// measured against it rather than wall time.
type World struct {
	ID              string
	Name            string
	GameTimeSeconds int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WorldSettings carries per-world tunables.
type WorldSettings struct {
	WorldID         string
	StagingTTLHours int
}

// WorldStore persists worlds and their settings.
type WorldStore interface {
	PutWorld(ctx context.Context, world World) error
	GetWorld(ctx context.Context, id string) (World, error)
	AdvanceGameTime(ctx context.Context, worldID string, seconds int64) (int64, error)
	PutSettings(ctx context.Context, settings WorldSettings) error
	GetSettings(ctx context.Context, worldID string) (WorldSettings, error)
}

// Location is a named place in a world; regions subdivide it.
type Location struct {
	ID      string
	WorldID string
	Name    string
}

// Region is the unit of staging: players move between regions and NPC
// presence snapshots attach to them.
type Region struct {
	ID         string
	WorldID    string
	LocationID string
	Name       string
}

// RegionStore persists locations and regions.
type RegionStore interface {
	PutLocation(ctx context.Context, location Location) error
	GetLocation(ctx context.Context, id string) (Location, error)
	PutRegion(ctx context.Context, region Region) error
	GetRegion(ctx context.Context, id string) (Region, error)
	ListRegionsByWorld(ctx context.Context, worldID string) ([]Region, error)
}

// RosterStore persists characters and their region ties.
type RosterStore interface {
	PutCharacter(ctx context.Context, character rosterdomain.Character) error
	GetCharacter(ctx context.Context, id string) (rosterdomain.Character, error)
	ListNpcsByWorld(ctx context.Context, worldID string) ([]rosterdomain.Character, error)
	PutRegionTie(ctx context.Context, tie rosterdomain.RegionTie) error
	ListTiesByRegion(ctx context.Context, regionID string) ([]rosterdomain.RegionTie, error)
}

// StagingStore persists presence snapshots.
//
// ActivateStaging atomically makes the given snapshot the region's current
// one, deactivating any previous snapshot without deleting it.
// ActiveStaging returns the region's current snapshot only while it is
// fresh at the given game time; LatestStaging returns the most recently
// activated snapshot regardless of freshness, for carrying presences into
// the next suggestion round.
type StagingStore interface {
	PutStaging(ctx context.Context, staging stagingdomain.Staging) error
	ActivateStaging(ctx context.Context, regionID, stagingID string) error
	ActiveStaging(ctx context.Context, regionID string, gameTimeSeconds int64) (stagingdomain.Staging, error)
	LatestStaging(ctx context.Context, regionID string) (stagingdomain.Staging, error)
}

// ChallengeStore persists challenge definitions.
//
// SetChallengeActive flips a challenge's availability without rewriting
// the rest of its record; outcome triggers use it to enable or disable
// challenges mid-session.
type ChallengeStore interface {
	PutChallenge(ctx context.Context, challenge challengedomain.Challenge) error
	GetChallenge(ctx context.Context, id string) (challengedomain.Challenge, error)
	ListChallengesByWorld(ctx context.Context, worldID string) ([]challengedomain.Challenge, error)
	SetChallengeActive(ctx context.Context, id string, active bool) error
}

// EventStore appends immutable world events.
type EventStore interface {
	AppendEvent(ctx context.Context, event challengedomain.Event) error
	ListEventsByWorld(ctx context.Context, worldID string, limit int) ([]challengedomain.Event, error)
}

// VisualState is one entry in a region's catalog of scene descriptions
// ("market day", "after the fire"). At most one is active per region.
type VisualState struct {
	ID          string
	RegionID    string
	Name        string
	Description string
	Active      bool
}

// VisualStateStore persists region visual-state catalogs.
type VisualStateStore interface {
	PutVisualState(ctx context.Context, state VisualState) error
	ListVisualStatesByRegion(ctx context.Context, regionID string) ([]VisualState, error)
	SetActiveVisualState(ctx context.Context, regionID, stateID string) error
	ActiveVisualState(ctx context.Context, regionID string) (VisualState, error)
}

// Store aggregates every persistence contract the services need.
type Store interface {
	WorldStore
	RegionStore
	RosterStore
	StagingStore
	ChallengeStore
	EventStore
	VisualStateStore
	Close() error
}
