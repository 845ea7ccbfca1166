package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/stagecraft/internal/approval"
	challengeservice "github.com/louisbranch/stagecraft/internal/challenge/service"
	"github.com/louisbranch/stagecraft/internal/core/dice"
	stagingservice "github.com/louisbranch/stagecraft/internal/staging/service"
)

// commandBudget bounds the handling of one inbound command.
const commandBudget = 30 * time.Second

// Inbound command types.
const (
	CommandEnterRegion     = "enter_region"
	CommandStagingDecision = "staging_decision"
	CommandRegenerate      = "regenerate_suggestions"
	CommandTrigger         = "trigger_challenge"
	CommandSubmitRoll      = "submit_roll"
	CommandOutcomeDecision = "outcome_decision"
	CommandSuggestOutcomes = "suggest_outcomes"
	CommandPendingRequests = "pending_requests"
)

// Reply message types.
const (
	MessageError           = "error"
	MessagePendingRequests = "pending_requests"
)

// StagingService is the slice of the staging flow the handler drives.
type StagingService interface {
	EnterRegion(ctx context.Context, worldID, regionID, characterID string) error
	Approve(ctx context.Context, worldID, requestID string, decision stagingservice.Decision) error
	Regenerate(ctx context.Context, worldID, requestID, guidance string) error
}

// ChallengeService is the slice of the challenge flow the handler drives.
type ChallengeService interface {
	TriggerChallenge(ctx context.Context, worldID, challengeID, characterID string) error
	SubmitRoll(ctx context.Context, worldID, characterID, challengeID string, input dice.Input) error
	Decide(ctx context.Context, worldID, requestID string, decision challengeservice.Decision) error
	SuggestOutcomes(ctx context.Context, worldID, requestID, guidance string) error
}

// EnterRegionCommand asks for a region's presence snapshot.
type EnterRegionCommand struct {
	RegionID    string `json:"region_id"`
	CharacterID string `json:"character_id"`
}

// StagingDecisionCommand resolves a pending staging request.
type StagingDecisionCommand struct {
	RequestID     string                       `json:"request_id"`
	ApprovedBy    string                       `json:"approved_by"`
	Npcs          []stagingservice.ApprovedNpc `json:"npcs"`
	VisualStateID string                       `json:"visual_state_id,omitempty"`
}

// RegenerateCommand re-runs suggestion generation with fresh guidance.
type RegenerateCommand struct {
	RequestID string `json:"request_id"`
	Guidance  string `json:"guidance,omitempty"`
}

// TriggerCommand prompts a player to roll against a challenge.
type TriggerCommand struct {
	ChallengeID string `json:"challenge_id"`
	CharacterID string `json:"character_id,omitempty"`
}

// SubmitRollCommand reports a player's roll for a challenge.
type SubmitRollCommand struct {
	ChallengeID string `json:"challenge_id"`
	CharacterID string `json:"character_id"`
	Formula     string `json:"formula,omitempty"`
	Manual      *int   `json:"manual,omitempty"`
}

// OutcomeDecisionCommand resolves a pending challenge outcome.
type OutcomeDecisionCommand struct {
	RequestID   string `json:"request_id"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// SuggestOutcomesCommand asks for alternative outcome narrations.
type SuggestOutcomesCommand struct {
	RequestID string `json:"request_id"`
	Guidance  string `json:"guidance,omitempty"`
}

// ErrorPayload reports a failed command back to its sender.
type ErrorPayload struct {
	Command string `json:"command"`
	Message string `json:"message"`
}

// PendingRequestsPayload lists the caller's world's pending approvals.
type PendingRequestsPayload struct {
	Requests []PendingRequest `json:"requests"`
}

// PendingRequest is one undecided approval shown to the director.
type PendingRequest struct {
	RequestID string `json:"request_id"`
	Kind      string `json:"kind"`
	Deadline  string `json:"deadline"`
}

// Handler dispatches inbound commands to the services.
type Handler struct {
	staging   StagingService
	challenge ChallengeService
	registry  *approval.Registry
	logger    *log.Logger
	tracer    trace.Tracer
}

// NewHandler builds a command dispatcher over the given services.
func NewHandler(staging StagingService, challenge ChallengeService, registry *approval.Registry) *Handler {
	return &Handler{
		staging:   staging,
		challenge: challenge,
		registry:  registry,
		logger:    log.Default(),
		tracer:    otel.Tracer("stagecraft/transport/ws"),
	}
}

// directorOnly marks commands restricted to director connections.
var directorOnly = map[string]bool{
	CommandStagingDecision: true,
	CommandRegenerate:      true,
	CommandTrigger:         true,
	CommandOutcomeDecision: true,
	CommandSuggestOutcomes: true,
	CommandPendingRequests: true,
}

func (h *Handler) handle(hub *Hub, c *client, raw []byte) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		hub.send(c, MessageError, ErrorPayload{Message: "malformed message"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandBudget)
	defer cancel()

	ctx, span := h.tracer.Start(ctx, "ws."+envelope.Type, trace.WithAttributes(
		attribute.String("world.id", c.worldID),
		attribute.String("client.role", string(c.role)),
	))
	defer span.End()

	if directorOnly[envelope.Type] && c.role != RoleDirector {
		span.SetStatus(codes.Error, "director role required")
		hub.send(c, MessageError, ErrorPayload{Command: envelope.Type, Message: "director role required"})
		return
	}

	err := h.dispatch(ctx, hub, c, envelope)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.Printf("ws: command %s from %s: %v", envelope.Type, c.id, err)
		hub.send(c, MessageError, ErrorPayload{Command: envelope.Type, Message: err.Error()})
	}
}

func (h *Handler) dispatch(ctx context.Context, hub *Hub, c *client, envelope Envelope) error {
	switch envelope.Type {
	case CommandEnterRegion:
		var cmd EnterRegionCommand
		if err := decode(envelope.Payload, &cmd); err != nil {
			return err
		}
		return h.staging.EnterRegion(ctx, c.worldID, cmd.RegionID, cmd.CharacterID)

	case CommandStagingDecision:
		var cmd StagingDecisionCommand
		if err := decode(envelope.Payload, &cmd); err != nil {
			return err
		}
		return h.staging.Approve(ctx, c.worldID, cmd.RequestID, stagingservice.Decision{
			ApprovedBy:    cmd.ApprovedBy,
			Npcs:          cmd.Npcs,
			VisualStateID: cmd.VisualStateID,
		})

	case CommandRegenerate:
		var cmd RegenerateCommand
		if err := decode(envelope.Payload, &cmd); err != nil {
			return err
		}
		return h.staging.Regenerate(ctx, c.worldID, cmd.RequestID, cmd.Guidance)

	case CommandTrigger:
		var cmd TriggerCommand
		if err := decode(envelope.Payload, &cmd); err != nil {
			return err
		}
		return h.challenge.TriggerChallenge(ctx, c.worldID, cmd.ChallengeID, cmd.CharacterID)

	case CommandSubmitRoll:
		var cmd SubmitRollCommand
		if err := decode(envelope.Payload, &cmd); err != nil {
			return err
		}
		return h.challenge.SubmitRoll(ctx, c.worldID, cmd.CharacterID, cmd.ChallengeID, dice.Input{
			Formula: cmd.Formula,
			Manual:  cmd.Manual,
		})

	case CommandOutcomeDecision:
		var cmd OutcomeDecisionCommand
		if err := decode(envelope.Payload, &cmd); err != nil {
			return err
		}
		return h.challenge.Decide(ctx, c.worldID, cmd.RequestID, challengeservice.Decision{
			Category:    cmd.Category,
			Description: cmd.Description,
		})

	case CommandSuggestOutcomes:
		var cmd SuggestOutcomesCommand
		if err := decode(envelope.Payload, &cmd); err != nil {
			return err
		}
		return h.challenge.SuggestOutcomes(ctx, c.worldID, cmd.RequestID, cmd.Guidance)

	case CommandPendingRequests:
		requests := make([]PendingRequest, 0)
		for _, entry := range h.registry.Snapshot() {
			if entry.WorldID != c.worldID {
				continue
			}
			requests = append(requests, PendingRequest{
				RequestID: entry.ID,
				Kind:      string(entry.Kind),
				Deadline:  entry.Deadline.Format(time.RFC3339),
			})
		}
		hub.send(c, MessagePendingRequests, PendingRequestsPayload{Requests: requests})
		return nil

	default:
		return fmt.Errorf("unknown command %q", envelope.Type)
	}
}

func decode(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}
