// Package domain holds skill challenges: the difficulty a roll is measured
// against, the outcome descriptions, and the triggers each outcome fires.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/stagecraft/internal/core/outcome"
	"github.com/louisbranch/stagecraft/internal/id"
)

var (
	// ErrEmptyWorldID indicates a missing world ID.
	ErrEmptyWorldID = errors.New("world id is required")
	// ErrEmptyName indicates a missing challenge name.
	ErrEmptyName = errors.New("challenge name is required")
	// ErrMissingOutcomes indicates success or failure descriptions are absent.
	ErrMissingOutcomes = errors.New("success and failure outcomes are required")
)

// Trigger kinds understood by the outcome executor.
const (
	// TriggerRevealInfo announces hidden information to the world. Target
	// carries the revealed text.
	TriggerRevealInfo = "reveal_info"
	// TriggerEnableChallenge re-enables a challenge. Target is its id.
	TriggerEnableChallenge = "enable_challenge"
	// TriggerDisableChallenge disables a challenge. Target is its id.
	TriggerDisableChallenge = "disable_challenge"
	// TriggerModifyStat adjusts a stat on the acting character's sheet.
	// Target names the stat; Value is the signed delta.
	TriggerModifyStat = "modify_stat"
	// TriggerScene starts a scene transition. Target is the scene id.
	TriggerScene = "trigger_scene"
)

// OutcomeTrigger is a side effect fired when an outcome lands. Kind is one
// of the trigger constants above; Target and Value carry kind-specific
// arguments.
type OutcomeTrigger struct {
	Kind   string
	Target string
	Value  string
}

// Outcome pairs a narrative description with the triggers it fires.
type Outcome struct {
	Description string
	Triggers    []OutcomeTrigger
}

// Outcomes holds the four possible challenge outcomes. The critical
// entries are optional; when nil the plain entry stands in for them.
type Outcomes struct {
	Success         Outcome
	Failure         Outcome
	CriticalSuccess *Outcome
	CriticalFailure *Outcome
}

// Texts projects the outcome descriptions into the evaluator's form.
// Absent critical entries project as empty strings, which disables the
// matching critical category.
func (o Outcomes) Texts() outcome.Outcomes {
	texts := outcome.Outcomes{
		Success: o.Success.Description,
		Failure: o.Failure.Description,
	}
	if o.CriticalSuccess != nil {
		texts.CriticalSuccess = o.CriticalSuccess.Description
	}
	if o.CriticalFailure != nil {
		texts.CriticalFailure = o.CriticalFailure.Description
	}
	return texts
}

// ForCategory returns the outcome for a category, falling back to the
// plain success or failure outcome when a critical one is absent.
func (o Outcomes) ForCategory(c outcome.Category) Outcome {
	switch c {
	case outcome.CriticalSuccess:
		if o.CriticalSuccess != nil {
			return *o.CriticalSuccess
		}
		return o.Success
	case outcome.CriticalFailure:
		if o.CriticalFailure != nil {
			return *o.CriticalFailure
		}
		return o.Failure
	case outcome.Failure:
		return o.Failure
	default:
		return o.Success
	}
}

// Challenge is a reusable skill test a director can put to a player.
type Challenge struct {
	ID          string
	WorldID     string
	Name        string
	Skill       string
	Difficulty  string // textual form, parsed by outcome.ParseDifficulty
	DiceFormula string
	Outcomes    Outcomes
	Disabled    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ParsedDifficulty parses the challenge's textual difficulty.
func (c Challenge) ParsedDifficulty() outcome.Difficulty {
	return outcome.ParseDifficulty(c.Difficulty)
}

// CreateChallengeInput describes the data needed to create a challenge.
type CreateChallengeInput struct {
	WorldID     string
	Name        string
	Skill       string
	Difficulty  string
	DiceFormula string
	Outcomes    Outcomes
}

// CreateChallenge creates a challenge with a generated ID and timestamps.
func CreateChallenge(input CreateChallengeInput, now func() time.Time, idGenerator func() (string, error)) (Challenge, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.WorldID = strings.TrimSpace(input.WorldID)
	if input.WorldID == "" {
		return Challenge{}, ErrEmptyWorldID
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Challenge{}, ErrEmptyName
	}
	if strings.TrimSpace(input.Outcomes.Success.Description) == "" ||
		strings.TrimSpace(input.Outcomes.Failure.Description) == "" {
		return Challenge{}, ErrMissingOutcomes
	}

	challengeID, err := idGenerator()
	if err != nil {
		return Challenge{}, fmt.Errorf("generate challenge id: %w", err)
	}

	createdAt := now().UTC()
	return Challenge{
		ID:          challengeID,
		WorldID:     input.WorldID,
		Name:        input.Name,
		Skill:       input.Skill,
		Difficulty:  input.Difficulty,
		DiceFormula: input.DiceFormula,
		Outcomes:    input.Outcomes,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}
