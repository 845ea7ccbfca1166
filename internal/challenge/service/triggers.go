package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	chdomain "github.com/louisbranch/stagecraft/internal/challenge/domain"
)

// InfoRevealedPayload announces information a trigger made public.
type InfoRevealedPayload struct {
	Info string `json:"info"`
}

// SceneTriggeredPayload announces a scene transition fired by a trigger.
type SceneTriggeredPayload struct {
	SceneID string `json:"scene_id"`
}

// executeTriggers applies the resolved outcome's triggers. Trigger
// failures are warnings: the outcome already landed, so a broken trigger
// must not undo it. Each applied trigger is recorded in the event log.
func (s *Service) executeTriggers(ctx context.Context, pending pendingOutcome) {
	for _, trigger := range pending.Challenge.Outcomes.ForCategory(pending.Category).Triggers {
		if err := s.executeTrigger(ctx, pending, trigger); err != nil {
			s.logger.Printf("challenge: trigger %s on %s: %v", trigger.Kind, trigger.Target, err)
			continue
		}

		triggerPayload, err := json.Marshal(map[string]string{
			"kind":   trigger.Kind,
			"target": trigger.Target,
			"value":  trigger.Value,
		})
		if err != nil {
			s.logger.Printf("challenge: encode trigger %s: %v", trigger.Kind, err)
			continue
		}
		s.appendEvent(ctx, chdomain.Event{
			WorldID:     pending.WorldID,
			Type:        chdomain.EventTypeTriggerFired,
			ChallengeID: pending.Challenge.ID,
			CharacterID: pending.CharacterID,
			PayloadJSON: triggerPayload,
		})
	}
}

func (s *Service) executeTrigger(ctx context.Context, pending pendingOutcome, trigger chdomain.OutcomeTrigger) error {
	switch trigger.Kind {
	case chdomain.TriggerRevealInfo:
		s.broadcaster.BroadcastToWorld(pending.WorldID, MessageInfoRevealed, InfoRevealedPayload{
			Info: trigger.Target,
		})
		return nil
	case chdomain.TriggerEnableChallenge:
		return s.stores.Challenge.SetChallengeActive(ctx, trigger.Target, true)
	case chdomain.TriggerDisableChallenge:
		return s.stores.Challenge.SetChallengeActive(ctx, trigger.Target, false)
	case chdomain.TriggerModifyStat:
		return s.modifyStat(ctx, pending.CharacterID, trigger)
	case chdomain.TriggerScene:
		s.broadcaster.BroadcastToWorld(pending.WorldID, MessageSceneTriggered, SceneTriggeredPayload{
			SceneID: trigger.Target,
		})
		return nil
	default:
		return fmt.Errorf("unknown trigger kind %q", trigger.Kind)
	}
}

// modifyStat applies a signed delta to a stat on the acting character's
// sheet and persists the character.
func (s *Service) modifyStat(ctx context.Context, characterID string, trigger chdomain.OutcomeTrigger) error {
	delta, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(trigger.Value), "+"))
	if err != nil {
		return fmt.Errorf("parse stat delta %q: %w", trigger.Value, err)
	}
	stat := strings.ToLower(strings.TrimSpace(trigger.Target))
	if stat == "" {
		return fmt.Errorf("stat name is required")
	}

	character, err := s.stores.Roster.GetCharacter(ctx, characterID)
	if err != nil {
		return fmt.Errorf("get character: %w", err)
	}
	if character.Sheet == nil {
		character.Sheet = make(map[string]int, 1)
	}
	character.Sheet[stat] += delta
	character.UpdatedAt = s.clock().UTC()
	if err := s.stores.Roster.PutCharacter(ctx, character); err != nil {
		return fmt.Errorf("put character: %w", err)
	}
	return nil
}
