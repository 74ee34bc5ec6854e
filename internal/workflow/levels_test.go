package workflow_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/JaimeStill/patrol/internal/workflow"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want workflow.Level
	}{
		{"Critical", workflow.LevelCritical},
		{"危険", workflow.LevelCritical},
		{" HIGH ", workflow.LevelHigh},
		{"ｈｉｇｈ", workflow.LevelHigh},
		{"高", workflow.LevelHigh},
		{"medium", workflow.LevelMedium},
		{"中", workflow.LevelMedium},
		{"Low", workflow.LevelLow},
		{"低", workflow.LevelLow},
		{"低 リスク", workflow.LevelLow},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := workflow.Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeFailUnsafe(t *testing.T) {
	unknown := []string{"", "  ", "unknown", "Error", "null", "リスク", "lowish", "n/a", "🤷"}

	for _, raw := range unknown {
		got := workflow.Normalize(raw)
		if got == workflow.LevelLow {
			t.Errorf("Normalize(%q) resolved to the safest tier", raw)
		}
		if got != workflow.FallbackLevel {
			t.Errorf("Normalize(%q) = %s, want %s", raw, got, workflow.FallbackLevel)
		}
	}
}

func TestLevelText(t *testing.T) {
	for _, l := range workflow.Levels() {
		t.Run(l.String(), func(t *testing.T) {
			b, err := json.Marshal(l)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}

			var back workflow.Level
			if err := json.Unmarshal(b, &back); err != nil {
				t.Fatalf("Unmarshal(%s): %v", b, err)
			}
			if back != l {
				t.Errorf("round trip %s = %s", l, back)
			}
		})
	}

	t.Run("invalid", func(t *testing.T) {
		var l workflow.Level
		err := json.Unmarshal([]byte(`"Severe"`), &l)
		if !errors.Is(err, workflow.ErrInvalidLevel) {
			t.Errorf("error = %v, want ErrInvalidLevel", err)
		}
	})
}

func TestLevelLabelAndFlagged(t *testing.T) {
	tests := []struct {
		level   workflow.Level
		label   string
		flagged bool
	}{
		{workflow.LevelCritical, "危険", true},
		{workflow.LevelHigh, "高", true},
		{workflow.LevelMedium, "中", true},
		{workflow.LevelLow, "低", false},
		{workflow.LevelError, "エラー", false},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := tt.level.Label(); got != tt.label {
				t.Errorf("Label() = %q, want %q", got, tt.label)
			}
			if got := tt.level.Flagged(); got != tt.flagged {
				t.Errorf("Flagged() = %v, want %v", got, tt.flagged)
			}
		})
	}

	if !(workflow.LevelLow < workflow.LevelMedium && workflow.LevelMedium < workflow.LevelHigh && workflow.LevelHigh < workflow.LevelCritical) {
		t.Error("tiers are not ordered")
	}
}
