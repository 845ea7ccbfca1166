package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	challengedomain "github.com/louisbranch/stagecraft/internal/challenge/domain"
	rosterdomain "github.com/louisbranch/stagecraft/internal/roster/domain"
	stagingdomain "github.com/louisbranch/stagecraft/internal/staging/domain"
	"github.com/louisbranch/stagecraft/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestWorldRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	world := storage.World{
		ID:              "world-1",
		Name:            "Thornmere",
		GameTimeSeconds: 3600,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := store.PutWorld(ctx, world); err != nil {
		t.Fatalf("put world: %v", err)
	}

	got, err := store.GetWorld(ctx, "world-1")
	if err != nil {
		t.Fatalf("get world: %v", err)
	}
	if got.Name != "Thornmere" || got.GameTimeSeconds != 3600 {
		t.Fatalf("unexpected world: %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("expected created at %v, got %v", now, got.CreatedAt)
	}

	if _, err := store.GetWorld(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdvanceGameTime(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutWorld(ctx, storage.World{ID: "world-1", Name: "Thornmere"}); err != nil {
		t.Fatalf("put world: %v", err)
	}

	gameTime, err := store.AdvanceGameTime(ctx, "world-1", 900)
	if err != nil {
		t.Fatalf("advance game time: %v", err)
	}
	if gameTime != 900 {
		t.Fatalf("expected game time 900, got %d", gameTime)
	}

	gameTime, err = store.AdvanceGameTime(ctx, "world-1", 100)
	if err != nil {
		t.Fatalf("advance game time: %v", err)
	}
	if gameTime != 1000 {
		t.Fatalf("expected game time 1000, got %d", gameTime)
	}

	if _, err := store.AdvanceGameTime(ctx, "missing", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutSettings(ctx, storage.WorldSettings{WorldID: "world-1", StagingTTLHours: 6}); err != nil {
		t.Fatalf("put settings: %v", err)
	}

	got, err := store.GetSettings(ctx, "world-1")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got.StagingTTLHours != 6 {
		t.Fatalf("expected ttl 6, got %d", got.StagingTTLHours)
	}

	if _, err := store.GetSettings(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCharacterRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	character := rosterdomain.Character{
		ID:      "char-1",
		WorldID: "world-1",
		Name:    "Marcus",
		Role:    rosterdomain.RoleNPC,
		Sheet:   map[string]int{"Athletics": 3},
		Mood:    "gruff",
	}
	if err := store.PutCharacter(ctx, character); err != nil {
		t.Fatalf("put character: %v", err)
	}
	if err := store.PutCharacter(ctx, rosterdomain.Character{
		ID:      "char-2",
		WorldID: "world-1",
		Name:    "Alia",
		Role:    rosterdomain.RolePlayer,
	}); err != nil {
		t.Fatalf("put character: %v", err)
	}

	got, err := store.GetCharacter(ctx, "char-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	if got.Role != rosterdomain.RoleNPC || got.Sheet["Athletics"] != 3 {
		t.Fatalf("unexpected character: %+v", got)
	}

	npcs, err := store.ListNpcsByWorld(ctx, "world-1")
	if err != nil {
		t.Fatalf("list npcs: %v", err)
	}
	if len(npcs) != 1 || npcs[0].ID != "char-1" {
		t.Fatalf("expected only the npc, got %+v", npcs)
	}
}

func TestRegionTies(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ties := []rosterdomain.RegionTie{
		{CharacterID: "char-1", RegionID: "region-1", Kind: rosterdomain.RelationHome},
		{CharacterID: "char-2", RegionID: "region-1", Kind: rosterdomain.RelationWorks, Shift: "day"},
		{CharacterID: "char-3", RegionID: "region-2", Kind: rosterdomain.RelationAvoids},
	}
	for _, tie := range ties {
		if err := store.PutRegionTie(ctx, tie); err != nil {
			t.Fatalf("put region tie: %v", err)
		}
	}

	got, err := store.ListTiesByRegion(ctx, "region-1")
	if err != nil {
		t.Fatalf("list ties: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 ties, got %d", len(got))
	}
	if got[1].Kind != rosterdomain.RelationWorks || got[1].Shift != "day" {
		t.Fatalf("unexpected tie: %+v", got[1])
	}
}

func TestStagingActivationSupersedes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := stagingdomain.Staging{
		ID:              "staging-1",
		RegionID:        "region-1",
		Source:          stagingdomain.SourceRuleBased,
		TTLHours:        3,
		GameTimeSeconds: 0,
		Npcs:            []stagingdomain.StagedNpc{{CharacterID: "char-1", Present: true}},
		CreatedAt:       time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	second := first
	second.ID = "staging-2"
	second.Source = stagingdomain.SourceDirectorApproved
	second.CreatedAt = first.CreatedAt.Add(time.Minute)

	for _, staging := range []stagingdomain.Staging{first, second} {
		if err := store.PutStaging(ctx, staging); err != nil {
			t.Fatalf("put staging: %v", err)
		}
	}

	if err := store.ActivateStaging(ctx, "region-1", "staging-1"); err != nil {
		t.Fatalf("activate staging: %v", err)
	}
	if err := store.ActivateStaging(ctx, "region-1", "staging-2"); err != nil {
		t.Fatalf("activate staging: %v", err)
	}

	active, err := store.ActiveStaging(ctx, "region-1", 0)
	if err != nil {
		t.Fatalf("active staging: %v", err)
	}
	if active.ID != "staging-2" {
		t.Fatalf("expected staging-2 active, got %q", active.ID)
	}

	// The superseded snapshot is retained.
	latest, err := store.LatestStaging(ctx, "region-1")
	if err != nil {
		t.Fatalf("latest staging: %v", err)
	}
	if latest.ID != "staging-2" {
		t.Fatalf("expected latest staging-2, got %q", latest.ID)
	}
}

func TestActiveStagingRespectsTTL(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	staging := stagingdomain.Staging{
		ID:              "staging-1",
		RegionID:        "region-1",
		Source:          stagingdomain.SourceAutoApproved,
		TTLHours:        1,
		GameTimeSeconds: 0,
	}
	if err := store.PutStaging(ctx, staging); err != nil {
		t.Fatalf("put staging: %v", err)
	}
	if err := store.ActivateStaging(ctx, "region-1", "staging-1"); err != nil {
		t.Fatalf("activate staging: %v", err)
	}

	if _, err := store.ActiveStaging(ctx, "region-1", 3599); err != nil {
		t.Fatalf("expected fresh staging, got %v", err)
	}
	if _, err := store.ActiveStaging(ctx, "region-1", 3600); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stale staging, got %v", err)
	}

	// The stale snapshot still surfaces through LatestStaging.
	if _, err := store.LatestStaging(ctx, "region-1"); err != nil {
		t.Fatalf("latest staging: %v", err)
	}
}

func TestActivateStagingUnknownID(t *testing.T) {
	store := openTestStore(t)

	err := store.ActivateStaging(context.Background(), "region-1", "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChallengeRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	challenge := challengedomain.Challenge{
		ID:          "challenge-1",
		WorldID:     "world-1",
		Name:        "Scale the wall",
		Skill:       "Athletics",
		Difficulty:  "dc:15",
		DiceFormula: "1d20",
		Outcomes: challengedomain.Outcomes{
			Success: challengedomain.Outcome{
				Description: "You reach the top.",
				Triggers:    []challengedomain.OutcomeTrigger{{Kind: challengedomain.TriggerRevealInfo, Target: "A second region lies beyond."}},
			},
			Failure:         challengedomain.Outcome{Description: "You slip."},
			CriticalFailure: &challengedomain.Outcome{Description: "You crash down."},
		},
	}
	if err := store.PutChallenge(ctx, challenge); err != nil {
		t.Fatalf("put challenge: %v", err)
	}

	got, err := store.GetChallenge(ctx, "challenge-1")
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if got.Outcomes.CriticalFailure == nil || got.Outcomes.CriticalFailure.Description != "You crash down." {
		t.Fatalf("expected critical failure outcome, got %+v", got.Outcomes)
	}
	if got.Outcomes.CriticalSuccess != nil {
		t.Fatal("expected nil critical success outcome")
	}
	if len(got.Outcomes.Success.Triggers) != 1 {
		t.Fatalf("expected success trigger, got %+v", got.Outcomes.Success)
	}

	challenges, err := store.ListChallengesByWorld(ctx, "world-1")
	if err != nil {
		t.Fatalf("list challenges: %v", err)
	}
	if len(challenges) != 1 {
		t.Fatalf("expected 1 challenge, got %d", len(challenges))
	}
}

func TestSetChallengeActive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	challenge := challengedomain.Challenge{
		ID:      "challenge-1",
		WorldID: "world-1",
		Name:    "Force the gate",
		Outcomes: challengedomain.Outcomes{
			Success: challengedomain.Outcome{Description: "It opens."},
			Failure: challengedomain.Outcome{Description: "It holds."},
		},
	}
	if err := store.PutChallenge(ctx, challenge); err != nil {
		t.Fatalf("put challenge: %v", err)
	}

	if err := store.SetChallengeActive(ctx, "challenge-1", false); err != nil {
		t.Fatalf("disable challenge: %v", err)
	}
	got, err := store.GetChallenge(ctx, "challenge-1")
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if !got.Disabled {
		t.Fatal("expected challenge disabled")
	}

	if err := store.SetChallengeActive(ctx, "challenge-1", true); err != nil {
		t.Fatalf("enable challenge: %v", err)
	}
	got, err = store.GetChallenge(ctx, "challenge-1")
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if got.Disabled {
		t.Fatal("expected challenge re-enabled")
	}

	if err := store.SetChallengeActive(ctx, "missing", false); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEventAppendAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"event-1", "event-2", "event-3"} {
		event := challengedomain.Event{
			ID:          id,
			WorldID:     "world-1",
			Type:        challengedomain.EventTypeChallengeResolved,
			ChallengeID: "challenge-1",
			PayloadJSON: []byte(`{"category":"success"}`),
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.AppendEvent(ctx, event); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}

	events, err := store.ListEventsByWorld(ctx, "world-1", 2)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != "event-3" {
		t.Fatalf("expected newest event first, got %q", events[0].ID)
	}

	if err := store.AppendEvent(ctx, challengedomain.Event{
		ID:      "event-4",
		WorldID: "world-1",
		Type:    challengedomain.EventType("BOGUS"),
	}); err == nil {
		t.Fatal("expected error for unsupported event type")
	}
}

func TestVisualStateActivation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	states := []storage.VisualState{
		{ID: "vs-1", RegionID: "region-1", Name: "market day"},
		{ID: "vs-2", RegionID: "region-1", Name: "after the fire"},
	}
	for _, state := range states {
		if err := store.PutVisualState(ctx, state); err != nil {
			t.Fatalf("put visual state: %v", err)
		}
	}

	if _, err := store.ActiveVisualState(ctx, "region-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before activation, got %v", err)
	}

	if err := store.SetActiveVisualState(ctx, "region-1", "vs-1"); err != nil {
		t.Fatalf("set visual state: %v", err)
	}
	if err := store.SetActiveVisualState(ctx, "region-1", "vs-2"); err != nil {
		t.Fatalf("set visual state: %v", err)
	}

	active, err := store.ActiveVisualState(ctx, "region-1")
	if err != nil {
		t.Fatalf("active visual state: %v", err)
	}
	if active.ID != "vs-2" {
		t.Fatalf("expected vs-2 active, got %q", active.ID)
	}

	listed, err := store.ListVisualStatesByRegion(ctx, "region-1")
	if err != nil {
		t.Fatalf("list visual states: %v", err)
	}
	activeCount := 0
	for _, state := range listed {
		if state.Active {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly one active state, got %d", activeCount)
	}

	if err := store.SetActiveVisualState(ctx, "region-1", "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
