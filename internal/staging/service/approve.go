package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/stagecraft/internal/approval"
	"github.com/louisbranch/stagecraft/internal/id"
	stagingdomain "github.com/louisbranch/stagecraft/internal/staging/domain"
	"github.com/louisbranch/stagecraft/internal/storage"
)

// SystemApprover marks snapshots approved by the timeout fallback.
const SystemApprover = "system"

// autoApprovePrefix marks reasoning carried into a timeout approval.
const autoApprovePrefix = "[Auto-approved] "

// ApprovedNpc is one NPC entry in an approval decision.
type ApprovedNpc struct {
	CharacterID string
	Present     bool
	Hidden      bool
	Mood        string
	Reasoning   string
}

// Decision is a director's resolution of a pending staging request. The
// NPC list may be empty; a region can stage as deserted.
type Decision struct {
	ApprovedBy    string
	Npcs          []ApprovedNpc
	VisualStateID string
}

// Approve resolves a pending request with an explicit director decision.
// The deciding director must belong to the request's world.
//
// The decision is validated before the request is consumed: one malformed
// character ID or a world mismatch rejects the decision and leaves the
// request pending, so the timeout fallback can still resolve it. A
// request that is already gone was resolved by the other path; the late
// decision is discarded without error.
func (s *Service) Approve(ctx context.Context, worldID, requestID string, decision Decision) error {
	for _, npc := range decision.Npcs {
		if err := id.Validate(npc.CharacterID); err != nil {
			return fmt.Errorf("character id %q: %w", npc.CharacterID, err)
		}
	}
	if entry, ok := s.registry.Get(requestID); ok && entry.WorldID != worldID {
		return ErrWorldMismatch
	}

	entry, ok := s.registry.Take(requestID)
	if !ok {
		s.logger.Printf("staging: request %s already resolved, discarding decision", requestID)
		return nil
	}
	pending, ok := entry.Payload.(pendingRequest)
	if !ok {
		return fmt.Errorf("request %s is not a staging request", requestID)
	}

	_, err := s.commit(ctx, pending, stagingdomain.SourceDirectorApproved, decision)
	return err
}

// autoApprove resolves a timed-out request with rule-based candidates.
// It runs on the registry's timer goroutine; the entry has already been
// consumed, so this is the only resolution path for it.
func (s *Service) autoApprove(entry approval.Entry) {
	pending, ok := entry.Payload.(pendingRequest)
	if !ok {
		s.logger.Printf("staging: timeout for non-staging request %s", entry.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), suggestionBudget)
	defer cancel()

	candidates, err := s.ruleCandidates(ctx, pending.RegionID)
	if err != nil {
		s.logger.Printf("staging: rule-based candidates for auto-approval: %v", err)
		candidates = nil
	}

	npcs := make([]ApprovedNpc, 0, len(candidates))
	for _, candidate := range candidates {
		npcs = append(npcs, ApprovedNpc{
			CharacterID: candidate.CharacterID,
			Present:     candidate.Present,
			Hidden:      candidate.Hidden,
			Mood:        candidate.Mood,
			Reasoning:   autoApprovePrefix + candidate.Reasoning,
		})
	}

	if _, err := s.commit(ctx, pending, stagingdomain.SourceAutoApproved, Decision{
		ApprovedBy: SystemApprover,
		Npcs:       npcs,
	}); err != nil {
		s.logger.Printf("staging: auto-approve request %s: %v", entry.ID, err)
		return
	}
	s.logger.Printf("staging: auto-approved request %s for region %s", entry.ID, pending.RegionID)
}

// commit builds, persists, and activates a staging snapshot, applies any
// visual-state override, and announces the result. TTL comes from world
// settings with a built-in fallback; persistence failures propagate.
func (s *Service) commit(ctx context.Context, pending pendingRequest, source stagingdomain.Source, decision Decision) (stagingdomain.Staging, error) {
	ttlHours := DefaultTTLHours
	settings, err := s.stores.World.GetSettings(ctx, pending.WorldID)
	if err != nil {
		s.logger.Printf("staging: get settings for world %s: %v (using default ttl %dh)", pending.WorldID, err, DefaultTTLHours)
	} else if settings.StagingTTLHours > 0 {
		ttlHours = settings.StagingTTLHours
	}

	var gameTime int64
	world, err := s.stores.World.GetWorld(ctx, pending.WorldID)
	if err != nil {
		s.logger.Printf("staging: get world %s: %v (using game time 0)", pending.WorldID, err)
	} else {
		gameTime = world.GameTimeSeconds
	}

	npcs := make([]stagingdomain.StagedNpc, 0, len(decision.Npcs))
	for _, approved := range decision.Npcs {
		name := ""
		character, err := s.stores.Roster.GetCharacter(ctx, approved.CharacterID)
		if err != nil {
			s.logger.Printf("staging: get character %s: %v", approved.CharacterID, err)
		} else {
			name = character.Name
		}
		npcs = append(npcs, stagingdomain.StagedNpc{
			CharacterID: approved.CharacterID,
			Name:        name,
			Present:     approved.Present,
			Hidden:      approved.Hidden,
			Mood:        approved.Mood,
			Reasoning:   approved.Reasoning,
		})
	}

	staging, err := stagingdomain.CreateStaging(stagingdomain.CreateStagingInput{
		RegionID:        pending.RegionID,
		Source:          source,
		ApprovedBy:      decision.ApprovedBy,
		TTLHours:        ttlHours,
		GameTimeSeconds: gameTime,
		Npcs:            npcs,
	}, s.clock, s.idGenerator)
	if err != nil {
		return stagingdomain.Staging{}, fmt.Errorf("create staging: %w", err)
	}

	if err := s.stores.Staging.PutStaging(ctx, staging); err != nil {
		return stagingdomain.Staging{}, fmt.Errorf("persist staging: %w", err)
	}
	if err := s.stores.Staging.ActivateStaging(ctx, staging.RegionID, staging.ID); err != nil {
		return stagingdomain.Staging{}, fmt.Errorf("activate staging: %w", err)
	}
	staging.Active = true

	s.applyVisualOverride(ctx, pending.RegionID, decision.VisualStateID)
	s.broadcastReady(ctx, pending.WorldID, staging)
	return staging, nil
}

// applyVisualOverride activates a director-selected visual state after
// validating it against the region's catalog. Unknown IDs are skipped with
// a warning; staging never fails over scenery.
func (s *Service) applyVisualOverride(ctx context.Context, regionID, stateID string) {
	if stateID == "" {
		return
	}

	states, err := s.stores.VisualState.ListVisualStatesByRegion(ctx, regionID)
	if err != nil {
		s.logger.Printf("staging: list visual states for region %s: %v", regionID, err)
		return
	}
	known := false
	for _, state := range states {
		if state.ID == stateID {
			known = true
			break
		}
	}
	if !known {
		s.logger.Printf("staging: visual state %s not in region %s catalog, skipping", stateID, regionID)
		return
	}

	if err := s.stores.VisualState.SetActiveVisualState(ctx, regionID, stateID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Printf("staging: visual state %s vanished before activation", stateID)
			return
		}
		s.logger.Printf("staging: activate visual state %s: %v", stateID, err)
	}
}
