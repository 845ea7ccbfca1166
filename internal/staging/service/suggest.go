package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/stagecraft/internal/llm"
	rosterdomain "github.com/louisbranch/stagecraft/internal/roster/domain"
	"github.com/louisbranch/stagecraft/internal/storage"
)

// ruleCandidates derives presence suggestions from declared region ties.
// Characters that avoid the region are never suggested. NPCs from the most
// recent snapshot are merged in afterwards so presences carry over between
// staging rounds.
func (s *Service) ruleCandidates(ctx context.Context, regionID string) ([]Candidate, error) {
	ties, err := s.stores.Roster.ListTiesByRegion(ctx, regionID)
	if err != nil {
		return nil, fmt.Errorf("list region ties: %w", err)
	}

	candidates := make([]Candidate, 0, len(ties))
	seen := make(map[string]bool, len(ties))
	for _, tie := range ties {
		if tie.Kind == rosterdomain.RelationAvoids || tie.Kind == rosterdomain.RelationUnspecified {
			continue
		}
		if seen[tie.CharacterID] {
			continue
		}
		character, err := s.stores.Roster.GetCharacter(ctx, tie.CharacterID)
		if err != nil {
			s.logger.Printf("staging: get character %s: %v", tie.CharacterID, err)
			continue
		}
		seen[tie.CharacterID] = true
		candidates = append(candidates, Candidate{
			CharacterID: character.ID,
			Name:        character.Name,
			Present:     true,
			Mood:        character.Mood,
			Reasoning:   tie.Reasoning(),
		})
	}

	latest, err := s.stores.Staging.LatestStaging(ctx, regionID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Printf("staging: latest staging for region %s: %v", regionID, err)
		}
		return candidates, nil
	}
	for _, npc := range latest.Npcs {
		if seen[npc.CharacterID] {
			continue
		}
		seen[npc.CharacterID] = true
		candidates = append(candidates, Candidate{
			CharacterID: npc.CharacterID,
			Name:        npc.Name,
			Present:     npc.Present,
			Hidden:      npc.Hidden,
			Mood:        npc.Mood,
			Reasoning:   npc.Reasoning,
		})
	}

	return candidates, nil
}

type llmSuggestion struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

const llmSystemPrompt = "You are a helpful TTRPG assistant helping decide which NPCs should be present in a scene. " +
	"Respond with a JSON array of objects, each with 'name' (exact name from the list) and 'reason' (brief explanation). " +
	"Select 1-4 NPCs that would logically be present. Only include NPCs from the provided list."

// llmCandidates asks the language model which NPCs should be present.
// Characters that avoid the region are excluded from the prompt. Any
// failure, including unparseable output, degrades to no suggestions.
func (s *Service) llmCandidates(ctx context.Context, pending pendingRequest, guidance string) []Candidate {
	if s.llm == nil {
		return nil
	}

	ties, err := s.stores.Roster.ListTiesByRegion(ctx, pending.RegionID)
	if err != nil {
		s.logger.Printf("staging: list ties for llm suggestions: %v", err)
		return nil
	}

	type promptNpc struct {
		character rosterdomain.Character
		relation  rosterdomain.RelationKind
	}
	candidates := make([]promptNpc, 0, len(ties))
	seen := make(map[string]bool, len(ties))
	for _, tie := range ties {
		if tie.Kind == rosterdomain.RelationAvoids || tie.Kind == rosterdomain.RelationUnspecified {
			continue
		}
		if seen[tie.CharacterID] {
			continue
		}
		character, err := s.stores.Roster.GetCharacter(ctx, tie.CharacterID)
		if err != nil {
			s.logger.Printf("staging: get character %s for llm suggestions: %v", tie.CharacterID, err)
			continue
		}
		seen[tie.CharacterID] = true
		candidates = append(candidates, promptNpc{character: character, relation: tie.Kind})
	}
	if len(candidates) == 0 {
		return nil
	}

	var npcList strings.Builder
	for i, npc := range candidates {
		fmt.Fprintf(&npcList, "%d. %s (%s)\n", i+1, npc.character.Name, npc.relation.Describe())
	}

	guidanceText := ""
	if g := normalizedGuidance(guidance); g != "" {
		guidanceText = "\n\nDM's guidance: " + g
	}

	prompt := fmt.Sprintf(
		"Region: %s (in %s)\n\nAvailable NPCs:\n%s%s\n\nWhich NPCs should be present? Respond with JSON only.",
		pending.RegionName, pending.LocationName, strings.TrimRight(npcList.String(), "\n"), guidanceText,
	)

	reply, err := s.llm.Complete(ctx, llm.Request{System: llmSystemPrompt, Prompt: prompt})
	if err != nil {
		s.logger.Printf("staging: llm suggestion request failed: %v", err)
		return nil
	}

	arrayJSON, ok := llm.FirstJSONArray(reply)
	if !ok {
		s.logger.Printf("staging: llm response contained no JSON array")
		return nil
	}
	var suggestions []llmSuggestion
	if err := json.Unmarshal([]byte(arrayJSON), &suggestions); err != nil {
		s.logger.Printf("staging: parse llm suggestions: %v", err)
		return nil
	}

	byName := make(map[string]rosterdomain.Character, len(candidates))
	for _, npc := range candidates {
		byName[rosterdomain.NormalizeName(npc.character.Name)] = npc.character
	}

	matched := make([]Candidate, 0, len(suggestions))
	for _, suggestion := range suggestions {
		character, ok := byName[rosterdomain.NormalizeName(suggestion.Name)]
		if !ok {
			continue
		}
		matched = append(matched, Candidate{
			CharacterID: character.ID,
			Name:        character.Name,
			Present:     true,
			Mood:        character.Mood,
			Reasoning:   "[LLM] " + suggestion.Reason,
		})
	}
	return matched
}
