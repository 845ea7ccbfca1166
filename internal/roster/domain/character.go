// Package domain holds the cast roster: the characters of a world and
// their declared ties to regions.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/stagecraft/internal/id"
)

// Role identifies who controls a character.
type Role int

const (
	// RoleUnspecified represents an invalid role value.
	RoleUnspecified Role = iota
	// RolePlayer indicates a player-controlled character.
	RolePlayer
	// RoleNPC indicates a director-controlled character.
	RoleNPC
)

func (r Role) String() string {
	switch r {
	case RolePlayer:
		return "player"
	case RoleNPC:
		return "npc"
	default:
		return "unspecified"
	}
}

// ParseRole parses the textual role form. Unknown values map to
// RoleUnspecified.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "player":
		return RolePlayer
	case "npc":
		return RoleNPC
	default:
		return RoleUnspecified
	}
}

var (
	// ErrEmptyWorldID indicates a missing world ID.
	ErrEmptyWorldID = errors.New("world id is required")
	// ErrEmptyName indicates a missing character name.
	ErrEmptyName = errors.New("character name is required")
)

// Character represents a member of a world's cast.
type Character struct {
	ID        string
	WorldID   string
	Name      string
	Role      Role
	Sheet     map[string]int // skill name -> modifier
	Mood      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SkillModifier looks up a skill modifier on the character sheet. The
// lookup is case-insensitive; unknown skills contribute nothing.
func (c Character) SkillModifier(skill string) int {
	want := strings.ToLower(strings.TrimSpace(skill))
	for name, modifier := range c.Sheet {
		if strings.ToLower(name) == want {
			return modifier
		}
	}
	return 0
}

// CreateCharacterInput describes the metadata needed to create a character.
type CreateCharacterInput struct {
	WorldID string
	Name    string
	Role    Role
	Sheet   map[string]int
	Mood    string
}

// CreateCharacter creates a new character with a generated ID and timestamps.
func CreateCharacter(input CreateCharacterInput, now func() time.Time, idGenerator func() (string, error)) (Character, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.WorldID = strings.TrimSpace(input.WorldID)
	if input.WorldID == "" {
		return Character{}, ErrEmptyWorldID
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Character{}, ErrEmptyName
	}

	characterID, err := idGenerator()
	if err != nil {
		return Character{}, fmt.Errorf("generate character id: %w", err)
	}

	createdAt := now().UTC()
	return Character{
		ID:        characterID,
		WorldID:   input.WorldID,
		Name:      input.Name,
		Role:      input.Role,
		Sheet:     input.Sheet,
		Mood:      input.Mood,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// NormalizeName collapses whitespace and lowercases a character name so
// free-text references can be matched back to roster entries.
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
