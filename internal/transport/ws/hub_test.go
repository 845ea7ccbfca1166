package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/louisbranch/stagecraft/internal/approval"
	challengeservice "github.com/louisbranch/stagecraft/internal/challenge/service"
	"github.com/louisbranch/stagecraft/internal/core/dice"
	stagingservice "github.com/louisbranch/stagecraft/internal/staging/service"
)

type stagingCall struct {
	Method    string
	WorldID   string
	RegionID  string
	RequestID string
	Decision  stagingservice.Decision
	Guidance  string
}

type fakeStaging struct {
	mu    sync.Mutex
	calls []stagingCall
}

func (f *fakeStaging) EnterRegion(_ context.Context, worldID, regionID, characterID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, stagingCall{Method: "enter", WorldID: worldID, RegionID: regionID})
	return nil
}

func (f *fakeStaging) Approve(_ context.Context, worldID, requestID string, decision stagingservice.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, stagingCall{Method: "approve", WorldID: worldID, RequestID: requestID, Decision: decision})
	return nil
}

func (f *fakeStaging) Regenerate(_ context.Context, worldID, requestID, guidance string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, stagingCall{Method: "regenerate", WorldID: worldID, RequestID: requestID, Guidance: guidance})
	return nil
}

func (f *fakeStaging) awaitCall(t *testing.T, method string) stagingCall {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for _, call := range f.calls {
			if call.Method == method {
				f.mu.Unlock()
				return call
			}
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("call %q never arrived", method)
	return stagingCall{}
}

type challengeCall struct {
	Method      string
	WorldID     string
	ChallengeID string
	CharacterID string
	RequestID   string
	Input       dice.Input
	Decision    challengeservice.Decision
}

type fakeChallenge struct {
	mu    sync.Mutex
	calls []challengeCall
}

func (f *fakeChallenge) TriggerChallenge(_ context.Context, worldID, challengeID, characterID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, challengeCall{Method: "trigger", WorldID: worldID, ChallengeID: challengeID, CharacterID: characterID})
	return nil
}

func (f *fakeChallenge) SubmitRoll(_ context.Context, worldID, characterID, challengeID string, input dice.Input) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, challengeCall{Method: "submit", WorldID: worldID, CharacterID: characterID, ChallengeID: challengeID, Input: input})
	return nil
}

func (f *fakeChallenge) Decide(_ context.Context, worldID, requestID string, decision challengeservice.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, challengeCall{Method: "decide", WorldID: worldID, RequestID: requestID, Decision: decision})
	return nil
}

func (f *fakeChallenge) SuggestOutcomes(_ context.Context, worldID, requestID, guidance string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, challengeCall{Method: "suggest", WorldID: worldID, RequestID: requestID})
	return nil
}

func (f *fakeChallenge) awaitCall(t *testing.T, method string) challengeCall {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for _, call := range f.calls {
			if call.Method == method {
				f.mu.Unlock()
				return call
			}
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("call %q never arrived", method)
	return challengeCall{}
}

type testEnv struct {
	hub       *Hub
	staging   *fakeStaging
	challenge *fakeChallenge
	registry  *approval.Registry
	server    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hub := NewHub()
	staging := &fakeStaging{}
	challenge := &fakeChallenge{}
	registry := approval.NewRegistry(nil)
	t.Cleanup(registry.Close)
	hub.SetHandler(NewHandler(staging, challenge, registry))
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)
	return &testEnv{hub: hub, staging: staging, challenge: challenge, registry: registry, server: server}
}

func (e *testEnv) dial(t *testing.T, worldID string, role Role) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "?world=" + worldID + "&role=" + string(role)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s as %s: %v", worldID, role, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (e *testEnv) clientCount() int {
	e.hub.mu.Lock()
	defer e.hub.mu.Unlock()
	return len(e.hub.clients)
}

// waitForClients polls until the hub tracks at least n clients; the dialer
// returns before the server side finishes registration.
func (e *testEnv) waitForClients(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.clientCount() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients", n)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return envelope
}

func sendCommand(t *testing.T, conn *websocket.Conn, commandType string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	frame, err := json.Marshal(Envelope{Type: commandType, Payload: data})
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write command: %v", err)
	}
}

func TestBroadcastAudiences(t *testing.T) {
	env := newTestEnv(t)
	player := env.dial(t, "world-1", RolePlayer)
	director := env.dial(t, "world-1", RoleDirector)
	other := env.dial(t, "world-2", RolePlayer)
	env.waitForClients(t, 3)

	env.hub.BroadcastToWorld("world-1", "staging_ready", map[string]string{"region_id": "r1"})

	if got := readEnvelope(t, player); got.Type != "staging_ready" {
		t.Fatalf("player got %q", got.Type)
	}
	if got := readEnvelope(t, director); got.Type != "staging_ready" {
		t.Fatalf("director got %q", got.Type)
	}

	env.hub.BroadcastToDirectors("world-1", "staging_suggestions", nil)
	if got := readEnvelope(t, director); got.Type != "staging_suggestions" {
		t.Fatalf("director got %q", got.Type)
	}

	// The world-2 player saw neither broadcast.
	_ = other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Fatal("expected no message for world-2")
	}
}

func TestHasDirector(t *testing.T) {
	env := newTestEnv(t)
	env.dial(t, "world-1", RolePlayer)
	env.waitForClients(t, 1)
	if env.hub.HasDirector("world-1") {
		t.Fatal("expected no director yet")
	}

	env.dial(t, "world-1", RoleDirector)
	env.waitForClients(t, 2)
	if !env.hub.HasDirector("world-1") {
		t.Fatal("expected a director")
	}
	if env.hub.HasDirector("world-2") {
		t.Fatal("expected no director in world-2")
	}
}

func TestEnterRegionDispatch(t *testing.T) {
	env := newTestEnv(t)
	player := env.dial(t, "world-1", RolePlayer)
	env.waitForClients(t, 1)

	sendCommand(t, player, CommandEnterRegion, EnterRegionCommand{RegionID: "region-1", CharacterID: "pc-1"})

	call := env.staging.awaitCall(t, "enter")
	if call.WorldID != "world-1" || call.RegionID != "region-1" {
		t.Fatalf("unexpected call: %+v", call)
	}
}

func TestDirectorOnlyCommandsRejectPlayers(t *testing.T) {
	env := newTestEnv(t)
	player := env.dial(t, "world-1", RolePlayer)
	env.waitForClients(t, 1)

	sendCommand(t, player, CommandStagingDecision, StagingDecisionCommand{RequestID: "req-1"})

	envelope := readEnvelope(t, player)
	if envelope.Type != MessageError {
		t.Fatalf("expected error frame, got %q", envelope.Type)
	}
	var payload ErrorPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Command != CommandStagingDecision || !strings.Contains(payload.Message, "director") {
		t.Fatalf("unexpected error payload: %+v", payload)
	}
}

func TestDirectorDecisionDispatch(t *testing.T) {
	env := newTestEnv(t)
	director := env.dial(t, "world-1", RoleDirector)
	env.waitForClients(t, 1)

	sendCommand(t, director, CommandStagingDecision, StagingDecisionCommand{
		RequestID:  "req-1",
		ApprovedBy: "director-1",
		Npcs:       []stagingservice.ApprovedNpc{{CharacterID: strings.Repeat("a", 26), Present: true}},
	})

	call := env.staging.awaitCall(t, "approve")
	if call.WorldID != "world-1" || call.RequestID != "req-1" || len(call.Decision.Npcs) != 1 {
		t.Fatalf("unexpected call: %+v", call)
	}
}

func TestSubmitRollDispatch(t *testing.T) {
	env := newTestEnv(t)
	player := env.dial(t, "world-1", RolePlayer)
	env.waitForClients(t, 1)

	manual := 17
	sendCommand(t, player, CommandSubmitRoll, SubmitRollCommand{
		ChallengeID: "ch-1",
		CharacterID: "pc-1",
		Manual:      &manual,
	})

	call := env.challenge.awaitCall(t, "submit")
	if call.ChallengeID != "ch-1" || call.Input.Manual == nil || *call.Input.Manual != 17 {
		t.Fatalf("unexpected call: %+v", call)
	}
}

func TestPendingRequestsFilteredByWorld(t *testing.T) {
	env := newTestEnv(t)
	director := env.dial(t, "world-1", RoleDirector)
	env.waitForClients(t, 1)

	if _, err := env.registry.Register(approval.KindStaging, "world-1", nil, time.Minute, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := env.registry.Register(approval.KindChallenge, "world-2", nil, time.Minute, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	sendCommand(t, director, CommandPendingRequests, struct{}{})

	envelope := readEnvelope(t, director)
	if envelope.Type != MessagePendingRequests {
		t.Fatalf("expected pending requests, got %q", envelope.Type)
	}
	var payload PendingRequestsPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Requests) != 1 || payload.Requests[0].Kind != "staging" {
		t.Fatalf("unexpected requests: %+v", payload.Requests)
	}
}

func TestUnknownCommandReturnsError(t *testing.T) {
	env := newTestEnv(t)
	player := env.dial(t, "world-1", RolePlayer)
	env.waitForClients(t, 1)

	sendCommand(t, player, "time_travel", struct{}{})

	envelope := readEnvelope(t, player)
	if envelope.Type != MessageError {
		t.Fatalf("expected error frame, got %q", envelope.Type)
	}
}

func TestCommandsRecordSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		_ = provider.Shutdown(context.Background())
	})

	env := newTestEnv(t)
	player := env.dial(t, "world-1", RolePlayer)
	env.waitForClients(t, 1)

	sendCommand(t, player, CommandEnterRegion, EnterRegionCommand{RegionID: "region-1", CharacterID: "pc-1"})
	env.staging.awaitCall(t, "enter")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, span := range exporter.GetSpans() {
			if span.Name == "ws."+CommandEnterRegion {
				for _, attr := range span.Attributes {
					if attr.Key == "world.id" && attr.Value.AsString() == "world-1" {
						return
					}
				}
				t.Fatalf("span missing world attribute: %+v", span.Attributes)
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no span recorded for the command")
}

func TestMissingWorldParameterRejected(t *testing.T) {
	env := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http")
	_, response, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if response == nil || response.StatusCode != 400 {
		t.Fatalf("expected 400 response, got %+v", response)
	}
}
