// Package service resolves skill challenges: a prompted player submits a
// roll, the roll is evaluated against the challenge's difficulty, and the
// outcome is either broadcast immediately or held for director review when
// one is connected.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/stagecraft/internal/approval"
	chdomain "github.com/louisbranch/stagecraft/internal/challenge/domain"
	"github.com/louisbranch/stagecraft/internal/core/dice"
	"github.com/louisbranch/stagecraft/internal/core/outcome"
	"github.com/louisbranch/stagecraft/internal/id"
	"github.com/louisbranch/stagecraft/internal/llm"
	"github.com/louisbranch/stagecraft/internal/storage"
)

// OutcomeTimeout bounds how long an evaluated outcome waits for director
// review before it is broadcast as evaluated.
const OutcomeTimeout = 30 * time.Second

// finalizeBudget bounds background finalization after a review timeout.
const finalizeBudget = 10 * time.Second

// Wire message types for challenge flows.
const (
	MessageChallengePrompt        = "challenge_prompt"
	MessageChallengeRollSubmitted = "challenge_roll_submitted"
	MessageOutcomePending         = "challenge_outcome_pending"
	MessageChallengeResolved      = "challenge_resolved"
	MessageOutcomeBranches        = "challenge_outcome_branches"
	MessageInfoRevealed           = "info_revealed"
	MessageSceneTriggered         = "scene_triggered"
)

var (
	// ErrRequestNotFound indicates the referenced pending outcome is gone.
	ErrRequestNotFound = errors.New("pending outcome not found")
	// ErrWorldMismatch indicates the challenge belongs to another world.
	ErrWorldMismatch = errors.New("challenge does not belong to this world")
	// ErrChallengeDisabled indicates the challenge has been disabled, for
	// example by an earlier outcome trigger.
	ErrChallengeDisabled = errors.New("challenge is disabled")
	// ErrNoLanguageModel indicates outcome branches were requested without
	// a configured language model.
	ErrNoLanguageModel = errors.New("no language model configured")
)

// Broadcaster delivers payloads to connected session participants and
// reports director presence, which decides whether outcomes are gated.
type Broadcaster interface {
	BroadcastToWorld(worldID, messageType string, payload any)
	BroadcastToDirectors(worldID, messageType string, payload any)
	HasDirector(worldID string) bool
}

// Stores groups the storage interfaces the challenge flow needs.
type Stores struct {
	Roster    storage.RosterStore
	Challenge storage.ChallengeStore
	Event     storage.EventStore
}

// Service drives challenge resolution for one server process.
type Service struct {
	stores      Stores
	registry    *approval.Registry
	broadcaster Broadcaster
	llm         llm.Client
	logger      *log.Logger
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewService creates a challenge service with default clock and ID
// generation. The LLM client is optional; without it outcome branch
// suggestions are unavailable.
func NewService(stores Stores, registry *approval.Registry, broadcaster Broadcaster, llmClient llm.Client) *Service {
	return &Service{
		stores:      stores,
		registry:    registry,
		broadcaster: broadcaster,
		llm:         llmClient,
		logger:      log.Default(),
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// PromptPayload asks a player to roll against a challenge.
type PromptPayload struct {
	ChallengeID string `json:"challenge_id"`
	Name        string `json:"name"`
	Skill       string `json:"skill,omitempty"`
	Difficulty  string `json:"difficulty"`
	Dice        string `json:"dice"`
	CharacterID string `json:"character_id,omitempty"`
}

// RollSubmittedPayload echoes a submitted roll to the world.
type RollSubmittedPayload struct {
	ChallengeID string `json:"challenge_id"`
	CharacterID string `json:"character_id"`
	Breakdown   string `json:"breakdown"`
	Total       int    `json:"total"`
	Pending     bool   `json:"pending"`
}

// OutcomePendingPayload asks the director to confirm or edit an outcome.
type OutcomePendingPayload struct {
	RequestID      string `json:"request_id"`
	ChallengeID    string `json:"challenge_id"`
	ChallengeName  string `json:"challenge_name"`
	CharacterID    string `json:"character_id"`
	Category       string `json:"category"`
	Description    string `json:"description"`
	Breakdown      string `json:"breakdown"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ResolvedPayload announces a final challenge outcome to the world.
type ResolvedPayload struct {
	ChallengeID   string `json:"challenge_id"`
	ChallengeName string `json:"challenge_name"`
	CharacterID   string `json:"character_id"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	Breakdown     string `json:"breakdown"`
	Total         int    `json:"total"`
}

// pendingOutcome is the registry payload for an outcome awaiting review.
type pendingOutcome struct {
	WorldID     string
	Challenge   chdomain.Challenge
	CharacterID string
	Breakdown   string
	Natural     int
	Total       int
	Category    outcome.Category
	Description string
}

// TriggerChallenge prompts a player to roll against a challenge and records
// the prompt in the event log.
func (s *Service) TriggerChallenge(ctx context.Context, worldID, challengeID, characterID string) error {
	challenge, err := s.stores.Challenge.GetChallenge(ctx, challengeID)
	if err != nil {
		return fmt.Errorf("get challenge: %w", err)
	}
	if challenge.WorldID != worldID {
		return ErrWorldMismatch
	}
	if challenge.Disabled {
		return ErrChallengeDisabled
	}

	diceFormula := challenge.DiceFormula
	if diceFormula == "" {
		diceFormula = outcome.DiceSuggestion(challenge.ParsedDifficulty())
	}

	s.broadcaster.BroadcastToWorld(worldID, MessageChallengePrompt, PromptPayload{
		ChallengeID: challenge.ID,
		Name:        challenge.Name,
		Skill:       challenge.Skill,
		Difficulty:  challenge.Difficulty,
		Dice:        diceFormula,
		CharacterID: characterID,
	})

	s.appendEvent(ctx, chdomain.Event{
		WorldID:     worldID,
		Type:        chdomain.EventTypeChallengePrompted,
		ChallengeID: challenge.ID,
		CharacterID: characterID,
	})
	return nil
}

// SubmitRoll resolves a player's roll against a challenge. The evaluated
// outcome is held for director review when a director is connected;
// otherwise it is finalized immediately.
func (s *Service) SubmitRoll(ctx context.Context, worldID, characterID, challengeID string, input dice.Input) error {
	challenge, err := s.stores.Challenge.GetChallenge(ctx, challengeID)
	if err != nil {
		return fmt.Errorf("get challenge: %w", err)
	}
	if challenge.WorldID != worldID {
		return ErrWorldMismatch
	}
	if challenge.Disabled {
		return ErrChallengeDisabled
	}

	if input.Formula == "" {
		input.Formula = challenge.DiceFormula
	}
	resolution, err := dice.Resolve(input, s.clock().UnixNano())
	if err != nil {
		return fmt.Errorf("resolve roll: %w", err)
	}

	modifier := 0
	character, err := s.stores.Roster.GetCharacter(ctx, characterID)
	if err != nil {
		s.logger.Printf("challenge: get character %s: %v (no skill modifier)", characterID, err)
	} else {
		modifier = character.SkillModifier(challenge.Skill)
	}
	total := resolution.Total + modifier

	category := outcome.Evaluate(challenge.ParsedDifficulty(), outcome.RollInput{
		Total:      total,
		Natural:    resolution.Natural,
		NaturalMin: resolution.NaturalMin,
		NaturalMax: resolution.NaturalMax,
	}, challenge.Outcomes.Texts())

	breakdown := resolution.Breakdown
	if modifier != 0 {
		breakdown = fmt.Sprintf("%s %+d (%s) = %d", resolution.Breakdown, modifier, challenge.Skill, total)
	}

	pending := pendingOutcome{
		WorldID:     worldID,
		Challenge:   challenge,
		CharacterID: characterID,
		Breakdown:   breakdown,
		Natural:     resolution.Natural,
		Total:       total,
		Category:    category,
		Description: challenge.Outcomes.ForCategory(category).Description,
	}

	gated := s.broadcaster.HasDirector(worldID)
	s.broadcaster.BroadcastToWorld(worldID, MessageChallengeRollSubmitted, RollSubmittedPayload{
		ChallengeID: challenge.ID,
		CharacterID: characterID,
		Breakdown:   breakdown,
		Total:       total,
		Pending:     gated,
	})

	if !gated {
		return s.finalize(ctx, pending)
	}

	requestID, err := s.registry.Register(approval.KindChallenge, worldID, pending, OutcomeTimeout, func(entry approval.Entry) {
		s.finalizeTimedOut(entry)
	})
	if err != nil {
		// The registry only refuses during shutdown; resolve inline
		// rather than dropping the roll.
		s.logger.Printf("challenge: register outcome review: %v", err)
		return s.finalize(ctx, pending)
	}

	s.broadcaster.BroadcastToDirectors(worldID, MessageOutcomePending, OutcomePendingPayload{
		RequestID:      requestID,
		ChallengeID:    challenge.ID,
		ChallengeName:  challenge.Name,
		CharacterID:    characterID,
		Category:       string(category),
		Description:    pending.Description,
		Breakdown:      breakdown,
		TimeoutSeconds: int(OutcomeTimeout / time.Second),
	})
	return nil
}

// appendEvent records a world event, warning on failure. The event log is
// an audit trail; a write failure never blocks gameplay.
func (s *Service) appendEvent(ctx context.Context, event chdomain.Event) {
	eventID, err := s.idGenerator()
	if err != nil {
		s.logger.Printf("challenge: generate event id: %v", err)
		return
	}
	event.ID = eventID
	event.Timestamp = s.clock().UTC()
	if err := s.stores.Event.AppendEvent(ctx, event); err != nil {
		s.logger.Printf("challenge: append %s event: %v", event.Type, err)
	}
}
