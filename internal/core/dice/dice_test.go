package dice

import (
	"errors"
	"reflect"
	"testing"
)

func TestRollDiceValidation(t *testing.T) {
	tests := []struct {
		name    string
		request Request
		wantErr error
	}{
		{
			name:    "no dice",
			request: Request{Seed: 1},
			wantErr: ErrMissingDice,
		},
		{
			name:    "zero sides",
			request: Request{Dice: []Spec{{Sides: 0, Count: 1}}, Seed: 1},
			wantErr: ErrInvalidDiceSpec,
		},
		{
			name:    "zero count",
			request: Request{Dice: []Spec{{Sides: 6, Count: 0}}, Seed: 1},
			wantErr: ErrInvalidDiceSpec,
		},
		{
			name:    "negative sides",
			request: Request{Dice: []Spec{{Sides: -4, Count: 2}}, Seed: 1},
			wantErr: ErrInvalidDiceSpec,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RollDice(tt.request)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRollDiceDeterminism(t *testing.T) {
	request := Request{
		Dice: []Spec{{Sides: 6, Count: 2}, {Sides: 8, Count: 1}},
		Seed: 42,
	}

	first, err := RollDice(request)
	if err != nil {
		t.Fatalf("roll dice: %v", err)
	}
	second, err := RollDice(request)
	if err != nil {
		t.Fatalf("roll dice: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results for same seed, got %+v and %+v", first, second)
	}
}

func TestRollDiceBoundsAndTotals(t *testing.T) {
	result, err := RollDice(Request{
		Dice: []Spec{{Sides: 6, Count: 4}, {Sides: 20, Count: 1}},
		Seed: 7,
	})
	if err != nil {
		t.Fatalf("roll dice: %v", err)
	}

	if len(result.Rolls) != 2 {
		t.Fatalf("expected 2 roll entries, got %d", len(result.Rolls))
	}

	grand := 0
	for _, roll := range result.Rolls {
		sum := 0
		for _, value := range roll.Results {
			if value < 1 || value > roll.Sides {
				t.Fatalf("die value %d out of range for d%d", value, roll.Sides)
			}
			sum += value
		}
		if sum != roll.Total {
			t.Fatalf("expected roll total %d, got %d", sum, roll.Total)
		}
		grand += sum
	}
	if grand != result.Total {
		t.Fatalf("expected grand total %d, got %d", grand, result.Total)
	}
}
