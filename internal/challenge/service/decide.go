package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/stagecraft/internal/approval"
	chdomain "github.com/louisbranch/stagecraft/internal/challenge/domain"
	"github.com/louisbranch/stagecraft/internal/core/outcome"
	"github.com/louisbranch/stagecraft/internal/llm"
	"github.com/louisbranch/stagecraft/internal/observability"
)

// Decision is a director's resolution of a pending outcome. Both fields
// are optional: an empty decision confirms the evaluated outcome as-is.
type Decision struct {
	// Category overrides the evaluated category when set to a valid one.
	Category string
	// Description overrides the outcome narration when non-empty.
	Description string
}

// Decide resolves a pending outcome with a director's confirmation or
// edit. The deciding director must belong to the outcome's world. A
// request that is already gone was broadcast by the timeout path; the
// late decision is discarded without error.
func (s *Service) Decide(ctx context.Context, worldID, requestID string, decision Decision) error {
	if entry, ok := s.registry.Get(requestID); ok && entry.WorldID != worldID {
		return ErrWorldMismatch
	}
	entry, ok := s.registry.Take(requestID)
	if !ok {
		s.logger.Printf("challenge: outcome %s already resolved, discarding decision", requestID)
		return nil
	}
	pending, ok := entry.Payload.(pendingOutcome)
	if !ok {
		return fmt.Errorf("request %s is not a challenge outcome", requestID)
	}

	if category, ok := parseCategory(decision.Category); ok {
		pending.Category = category
		pending.Description = pending.Challenge.Outcomes.ForCategory(category).Description
	}
	if decision.Description != "" {
		pending.Description = decision.Description
	}

	return s.finalize(ctx, pending)
}

func parseCategory(s string) (outcome.Category, bool) {
	switch outcome.Category(strings.TrimSpace(s)) {
	case outcome.CriticalSuccess:
		return outcome.CriticalSuccess, true
	case outcome.Success:
		return outcome.Success, true
	case outcome.Failure:
		return outcome.Failure, true
	case outcome.CriticalFailure:
		return outcome.CriticalFailure, true
	default:
		return "", false
	}
}

// finalizeTimedOut broadcasts an outcome whose review window expired. It
// runs on the registry's timer goroutine.
func (s *Service) finalizeTimedOut(entry approval.Entry) {
	pending, ok := entry.Payload.(pendingOutcome)
	if !ok {
		s.logger.Printf("challenge: timeout for non-challenge request %s", entry.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), finalizeBudget)
	defer cancel()

	if err := s.finalize(ctx, pending); err != nil {
		s.logger.Printf("challenge: finalize timed-out outcome %s: %v", entry.ID, err)
		return
	}
	s.logger.Printf("challenge: outcome %s broadcast after review timeout", entry.ID)
}

// finalize records the resolved outcome, fires its triggers, and announces
// it to the world.
func (s *Service) finalize(ctx context.Context, pending pendingOutcome) error {
	payload, err := json.Marshal(map[string]any{
		"challenge_id": pending.Challenge.ID,
		"character_id": pending.CharacterID,
		"category":     string(pending.Category),
		"description":  pending.Description,
		"breakdown":    pending.Breakdown,
		"total":        pending.Total,
	})
	if err != nil {
		return fmt.Errorf("encode outcome payload: %w", err)
	}
	s.appendEvent(ctx, chdomain.Event{
		WorldID:     pending.WorldID,
		Type:        chdomain.EventTypeChallengeResolved,
		ChallengeID: pending.Challenge.ID,
		CharacterID: pending.CharacterID,
		PayloadJSON: payload,
	})

	s.executeTriggers(ctx, pending)

	observability.ChallengeOutcomes.WithLabelValues(string(pending.Category)).Inc()

	s.broadcaster.BroadcastToWorld(pending.WorldID, MessageChallengeResolved, ResolvedPayload{
		ChallengeID:   pending.Challenge.ID,
		ChallengeName: pending.Challenge.Name,
		CharacterID:   pending.CharacterID,
		Category:      string(pending.Category),
		Description:   pending.Description,
		Breakdown:     pending.Breakdown,
		Total:         pending.Total,
	})
	return nil
}

// BranchesPayload carries alternative outcome narrations to the director.
type BranchesPayload struct {
	RequestID string   `json:"request_id"`
	Branches  []string `json:"branches"`
}

// maxBranches caps how many alternative narrations are offered.
const maxBranches = 3

const branchSystemPrompt = "You are a helpful TTRPG assistant helping a game master narrate challenge outcomes. " +
	"Respond with a numbered list of up to 3 alternative outcome descriptions, one per line. " +
	"Keep each description to one or two sentences and stay consistent with the rolled result."

// SuggestOutcomes asks the language model for alternative narrations of a
// pending outcome and delivers them to the directors. The requesting
// director must belong to the outcome's world. The request stays pending.
func (s *Service) SuggestOutcomes(ctx context.Context, worldID, requestID, guidance string) error {
	if s.llm == nil {
		return ErrNoLanguageModel
	}

	entry, ok := s.registry.Get(requestID)
	if !ok {
		return ErrRequestNotFound
	}
	if entry.WorldID != worldID {
		return ErrWorldMismatch
	}
	pending, ok := entry.Payload.(pendingOutcome)
	if !ok {
		return fmt.Errorf("request %s is not a challenge outcome", requestID)
	}

	prompt := fmt.Sprintf(
		"Challenge: %s (skill: %s)\nRoll: %s\nResult: %s\nBase outcome: %s",
		pending.Challenge.Name, pending.Challenge.Skill, pending.Breakdown,
		string(pending.Category), pending.Description,
	)
	if g := strings.TrimSpace(guidance); g != "" {
		prompt += "\n\nDM's guidance: " + g
	}
	prompt += "\n\nSuggest up to 3 alternative narrations."

	reply, err := s.llm.Complete(ctx, llm.Request{System: branchSystemPrompt, Prompt: prompt})
	if err != nil {
		return fmt.Errorf("request outcome branches: %w", err)
	}

	branches := llm.ParseNumberedLines(reply, maxBranches)
	if len(branches) == 0 {
		s.logger.Printf("challenge: outcome branch reply contained no numbered lines")
	}

	s.broadcaster.BroadcastToDirectors(pending.WorldID, MessageOutcomeBranches, BranchesPayload{
		RequestID: requestID,
		Branches:  branches,
	})
	return nil
}
