package domain

import (
	"errors"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func stubID() (string, error) {
	return "staging-1", nil
}

func TestCreateStaging(t *testing.T) {
	staging, err := CreateStaging(CreateStagingInput{
		RegionID:        "region-1",
		Source:          SourceDirectorApproved,
		ApprovedBy:      "director-1",
		TTLHours:        3,
		GameTimeSeconds: 7200,
		Npcs: []StagedNpc{
			{CharacterID: "char-1", Present: true},
		},
	}, fixedNow, stubID)
	if err != nil {
		t.Fatalf("create staging: %v", err)
	}

	if staging.ID != "staging-1" {
		t.Fatalf("expected generated id, got %q", staging.ID)
	}
	if staging.Active {
		t.Fatal("expected new staging to start inactive")
	}
	if !staging.CreatedAt.Equal(fixedNow()) {
		t.Fatal("expected timestamp from injected clock")
	}
}

func TestCreateStagingAllowsEmptyNpcList(t *testing.T) {
	staging, err := CreateStaging(CreateStagingInput{
		RegionID: "region-1",
		Source:   SourceAutoApproved,
		TTLHours: 3,
	}, fixedNow, stubID)
	if err != nil {
		t.Fatalf("create staging: %v", err)
	}
	if len(staging.Npcs) != 0 {
		t.Fatalf("expected empty npc list, got %d", len(staging.Npcs))
	}
}

func TestCreateStagingValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateStagingInput
		wantErr error
	}{
		{
			name:    "missing region",
			input:   CreateStagingInput{Source: SourceRuleBased, TTLHours: 3},
			wantErr: ErrEmptyRegionID,
		},
		{
			name:    "zero ttl",
			input:   CreateStagingInput{RegionID: "region-1", Source: SourceRuleBased},
			wantErr: ErrInvalidTTL,
		},
		{
			name:    "negative ttl",
			input:   CreateStagingInput{RegionID: "region-1", Source: SourceRuleBased, TTLHours: -1},
			wantErr: ErrInvalidTTL,
		},
		{
			name:    "missing source",
			input:   CreateStagingInput{RegionID: "region-1", TTLHours: 3},
			wantErr: ErrInvalidSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CreateStaging(tt.input, fixedNow, stubID); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStagingExpiry(t *testing.T) {
	staging := Staging{TTLHours: 3, GameTimeSeconds: 1000}

	if got := staging.ExpiresAtGameTime(); got != 1000+3*3600 {
		t.Fatalf("expected expiry at %d, got %d", 1000+3*3600, got)
	}
	if staging.Expired(1000 + 3*3600 - 1) {
		t.Fatal("expected staging to still be fresh one second before expiry")
	}
	if !staging.Expired(1000 + 3*3600) {
		t.Fatal("expected staging to be stale at expiry")
	}
}

func TestVisibleNpcs(t *testing.T) {
	staging := Staging{Npcs: []StagedNpc{
		{CharacterID: "a", Present: true},
		{CharacterID: "b", Present: true, Hidden: true},
		{CharacterID: "c", Present: false},
		{CharacterID: "d", Present: true},
	}}

	visible := staging.VisibleNpcs()
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible npcs, got %d", len(visible))
	}
	if visible[0].CharacterID != "a" || visible[1].CharacterID != "d" {
		t.Fatalf("unexpected visible npcs: %+v", visible)
	}
}

func TestParseSourceRoundTrip(t *testing.T) {
	for _, source := range []Source{SourceDirectorApproved, SourceAutoApproved, SourceRuleBased} {
		if got := ParseSource(source.String()); got != source {
			t.Fatalf("expected %v to round-trip, got %v", source, got)
		}
	}
	if ParseSource("nonsense") != SourceUnspecified {
		t.Fatal("expected unknown source to parse as unspecified")
	}
}
