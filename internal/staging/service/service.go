// Package service implements the staging resolution flow: when a player
// enters a region without a fresh presence snapshot, a pending request is
// registered for the director and resolved exactly once, by explicit
// decision or by timeout auto-approval.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/stagecraft/internal/approval"
	"github.com/louisbranch/stagecraft/internal/id"
	"github.com/louisbranch/stagecraft/internal/llm"
	stagingdomain "github.com/louisbranch/stagecraft/internal/staging/domain"
	"github.com/louisbranch/stagecraft/internal/storage"
)

// StagingTimeout bounds how long a pending staging request waits for a
// director decision before auto-approval kicks in.
const StagingTimeout = 30 * time.Second

// DefaultTTLHours applies when world settings cannot be read. A settings
// failure must never block staging.
const DefaultTTLHours = 3

// suggestionBudget bounds background suggestion generation.
const suggestionBudget = 25 * time.Second

// Wire message types for staging flows.
const (
	MessageStagingPending          = "staging_pending"
	MessageStagingApprovalRequired = "staging_approval_required"
	MessageStagingSuggestions      = "staging_suggestions"
	MessageStagingReady            = "staging_ready"
)

var (
	// ErrRequestNotFound indicates the referenced pending request is gone.
	ErrRequestNotFound = errors.New("pending staging request not found")
	// ErrWorldMismatch indicates the request belongs to another world.
	ErrWorldMismatch = errors.New("staging request does not belong to this world")
)

// Broadcaster delivers payloads to connected session participants.
type Broadcaster interface {
	BroadcastToWorld(worldID, messageType string, payload any)
	BroadcastToDirectors(worldID, messageType string, payload any)
}

// Stores groups the storage interfaces the staging flow needs.
type Stores struct {
	World       storage.WorldStore
	Region      storage.RegionStore
	Roster      storage.RosterStore
	Staging     storage.StagingStore
	VisualState storage.VisualStateStore
}

// Service drives staging resolution for one server process.
type Service struct {
	stores      Stores
	registry    *approval.Registry
	broadcaster Broadcaster
	llm         llm.Client
	logger      *log.Logger
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewService creates a staging service with default clock and ID
// generation. The LLM client is optional; without it only rule-based
// suggestions are produced.
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

// PendingPayload is the player-facing wait notice.
type PendingPayload struct {
	RequestID      string `json:"request_id"`
	RegionID       string `json:"region_id"`
	RegionName     string `json:"region_name"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// VisualStateOption is one selectable entry from the region's
// visual-state catalog.
type VisualStateOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ApprovalRequiredPayload is the director-facing notification. It carries
// everything the approval form needs up front: the waiting player, the
// previous snapshot's presences, and the region's visual-state catalog.
// TTLHours pre-fills the form with the world default. Suggested candidates
// follow separately once generated.
type ApprovalRequiredPayload struct {
	RequestID    string              `json:"request_id"`
	RegionID     string              `json:"region_id"`
	RegionName   string              `json:"region_name"`
	LocationName string              `json:"location_name,omitempty"`
	CharacterID  string              `json:"character_id,omitempty"`
	TTLHours     int                 `json:"ttl_hours"`
	Waiting      []WaitingPlayer     `json:"waiting_players,omitempty"`
	Previous     []Candidate         `json:"previous,omitempty"`
	VisualStates []VisualStateOption `json:"visual_states,omitempty"`
}

// WaitingPlayer identifies a player character blocked on the decision.
type WaitingPlayer struct {
	CharacterID string `json:"character_id"`
	Name        string `json:"name,omitempty"`
}

// Candidate is one suggested NPC presence.
type Candidate struct {
	CharacterID string `json:"character_id"`
	Name        string `json:"name"`
	Present     bool   `json:"present"`
	Hidden      bool   `json:"hidden"`
	Mood        string `json:"mood,omitempty"`
	Reasoning   string `json:"reasoning"`
}

// SuggestionsPayload carries generated candidates to the director.
type SuggestionsPayload struct {
	RequestID string      `json:"request_id"`
	RuleBased []Candidate `json:"rule_based"`
	LLM       []Candidate `json:"llm"`
}

// ReadyNpc is one visible NPC in a resolved staging.
type ReadyNpc struct {
	CharacterID string `json:"character_id"`
	Name        string `json:"name"`
	Mood        string `json:"mood,omitempty"`
}

// ReadyPayload announces a resolved staging to the world.
type ReadyPayload struct {
	RegionID    string     `json:"region_id"`
	Npcs        []ReadyNpc `json:"npcs"`
	Source      string     `json:"source"`
	VisualState string     `json:"visual_state,omitempty"`
}

// pendingRequest is the registry payload for a staging request.
type pendingRequest struct {
	WorldID      string
	RegionID     string
	RegionName   string
	LocationName string
	CharacterID  string
}

// EnterRegion handles a player arriving in a region. A fresh snapshot is
// re-broadcast immediately; otherwise a pending approval request is
// opened.
func (s *Service) EnterRegion(ctx context.Context, worldID, regionID, characterID string) error {
	world, err := s.stores.World.GetWorld(ctx, worldID)
	if err != nil {
		return fmt.Errorf("get world: %w", err)
	}

	active, err := s.stores.Staging.ActiveStaging(ctx, regionID, world.GameTimeSeconds)
	if err == nil {
		s.broadcastReady(ctx, world.ID, active)
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("check active staging: %w", err)
	}

	_, err = s.RequestApproval(ctx, worldID, regionID, characterID, "")
	return err
}

// RequestApproval registers a pending staging request. The wait notice and
// the director notification go out before suggestion generation starts;
// suggestions follow as a separate message when ready.
func (s *Service) RequestApproval(ctx context.Context, worldID, regionID, characterID, guidance string) (string, error) {
	region, err := s.stores.Region.GetRegion(ctx, regionID)
	if err != nil {
		return "", fmt.Errorf("get region: %w", err)
	}

	locationName := ""
	if region.LocationID != "" {
		location, err := s.stores.Region.GetLocation(ctx, region.LocationID)
		if err != nil {
			s.logger.Printf("staging: get location %s: %v", region.LocationID, err)
		} else {
			locationName = location.Name
		}
	}

	pending := pendingRequest{
		WorldID:      worldID,
		RegionID:     region.ID,
		RegionName:   region.Name,
		LocationName: locationName,
		CharacterID:  characterID,
	}

	requestID, err := s.registry.Register(approval.KindStaging, worldID, pending, StagingTimeout, func(entry approval.Entry) {
		s.autoApprove(entry)
	})
	if err != nil {
		return "", fmt.Errorf("register staging request: %w", err)
	}

	s.broadcaster.BroadcastToWorld(worldID, MessageStagingPending, PendingPayload{
		RequestID:      requestID,
		RegionID:       region.ID,
		RegionName:     region.Name,
		TimeoutSeconds: int(StagingTimeout / time.Second),
	})
	ttlHours := DefaultTTLHours
	if settings, err := s.stores.World.GetSettings(ctx, worldID); err == nil && settings.StagingTTLHours > 0 {
		ttlHours = settings.StagingTTLHours
	}
	s.broadcaster.BroadcastToDirectors(worldID, MessageStagingApprovalRequired, ApprovalRequiredPayload{
		RequestID:    requestID,
		RegionID:     region.ID,
		RegionName:   region.Name,
		LocationName: locationName,
		CharacterID:  characterID,
		TTLHours:     ttlHours,
		Waiting:      s.waitingPlayers(ctx, characterID),
		Previous:     s.previousPresences(ctx, region.ID),
		VisualStates: s.visualStateOptions(ctx, region.ID),
	})

	go s.generateSuggestions(requestID, pending, guidance)

	return requestID, nil
}

// waitingPlayers describes the player characters blocked on a pending
// request. Name resolution is best-effort.
func (s *Service) waitingPlayers(ctx context.Context, characterID string) []WaitingPlayer {
	if characterID == "" {
		return nil
	}
	waiting := WaitingPlayer{CharacterID: characterID}
	if character, err := s.stores.Roster.GetCharacter(ctx, characterID); err == nil {
		waiting.Name = character.Name
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.logger.Printf("staging: get waiting character %s: %v", characterID, err)
	}
	return []WaitingPlayer{waiting}
}

// previousPresences projects the region's most recent snapshot into
// candidates, so the director sees who was staged last time even when the
// snapshot has gone stale. Best-effort; no snapshot means no entries.
func (s *Service) previousPresences(ctx context.Context, regionID string) []Candidate {
	previous, err := s.stores.Staging.LatestStaging(ctx, regionID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Printf("staging: latest staging for region %s: %v", regionID, err)
		}
		return nil
	}
	candidates := make([]Candidate, 0, len(previous.Npcs))
	for _, npc := range previous.Npcs {
		candidates = append(candidates, Candidate{
			CharacterID: npc.CharacterID,
			Name:        npc.Name,
			Present:     npc.Present,
			Hidden:      npc.Hidden,
			Mood:        npc.Mood,
			Reasoning:   npc.Reasoning,
		})
	}
	return candidates
}

// visualStateOptions lists the region's visual-state catalog for the
// approval form. Best-effort; a catalog failure never blocks staging.
func (s *Service) visualStateOptions(ctx context.Context, regionID string) []VisualStateOption {
	states, err := s.stores.VisualState.ListVisualStatesByRegion(ctx, regionID)
	if err != nil {
		s.logger.Printf("staging: list visual states for region %s: %v", regionID, err)
		return nil
	}
	options := make([]VisualStateOption, 0, len(states))
	for _, state := range states {
		options = append(options, VisualStateOption{ID: state.ID, Name: state.Name})
	}
	return options
}

// Regenerate re-runs suggestion generation for a still-pending request,
// typically with fresh director guidance. The requesting director must
// belong to the request's world. The request stays pending.
func (s *Service) Regenerate(ctx context.Context, worldID, requestID, guidance string) error {
	entry, ok := s.registry.Get(requestID)
	if !ok {
		return ErrRequestNotFound
	}
	if entry.WorldID != worldID {
		return ErrWorldMismatch
	}
	pending, ok := entry.Payload.(pendingRequest)
	if !ok {
		return fmt.Errorf("request %s is not a staging request", requestID)
	}

	s.generateSuggestions(requestID, pending, guidance)
	return nil
}

// generateSuggestions computes rule-based and LLM candidates and delivers
// them to the directors. Failures degrade to empty lists.
func (s *Service) generateSuggestions(requestID string, pending pendingRequest, guidance string) {
	ctx, cancel := context.WithTimeout(context.Background(), suggestionBudget)
	defer cancel()

	ruleBased, err := s.ruleCandidates(ctx, pending.RegionID)
	if err != nil {
		s.logger.Printf("staging: rule-based suggestions for region %s: %v", pending.RegionID, err)
		ruleBased = []Candidate{}
	}

	llmBased := s.llmCandidates(ctx, pending, guidance)

	s.broadcaster.BroadcastToDirectors(pending.WorldID, MessageStagingSuggestions, SuggestionsPayload{
		RequestID: requestID,
		RuleBased: ruleBased,
		LLM:       llmBased,
	})
}

// broadcastReady announces an existing staging snapshot to the world.
func (s *Service) broadcastReady(ctx context.Context, worldID string, staging stagingdomain.Staging) {
	visualState := ""
	if state, err := s.stores.VisualState.ActiveVisualState(ctx, staging.RegionID); err == nil {
		visualState = state.Name
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.logger.Printf("staging: resolve visual state for region %s: %v", staging.RegionID, err)
	}

	visible := staging.VisibleNpcs()
	npcs := make([]ReadyNpc, 0, len(visible))
	for _, npc := range visible {
		npcs = append(npcs, ReadyNpc{
			CharacterID: npc.CharacterID,
			Name:        npc.Name,
			Mood:        npc.Mood,
		})
	}

	s.broadcaster.BroadcastToWorld(worldID, MessageStagingReady, ReadyPayload{
		RegionID:    staging.RegionID,
		Npcs:        npcs,
		Source:      staging.Source.String(),
		VisualState: visualState,
	})
}

func normalizedGuidance(guidance string) string {
	return strings.TrimSpace(guidance)
}
