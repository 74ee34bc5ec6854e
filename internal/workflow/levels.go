package workflow

import (
	"fmt"
	"strings"

	"golang.org/x/text/width"
)

// Level is an ordered risk tier. LevelError sorts below every tier and is
// not itself a tier: it marks an item whose label could not be obtained.
type Level int

// Risk levels, safest tier first after LevelError.
const (
	LevelError Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

// FallbackLevel is assigned whenever a model label is missing or
// unrecognized. It is never the safest tier.
const FallbackLevel = LevelMedium

var names = map[Level]string{
	LevelError:    "Error",
	LevelLow:      "Low",
	LevelMedium:   "Medium",
	LevelHigh:     "High",
	LevelCritical: "Critical",
}

var localized = map[Level]string{
	LevelError:    "エラー",
	LevelLow:      "低",
	LevelMedium:   "中",
	LevelHigh:     "高",
	LevelCritical: "危険",
}

// labels is the single table of raw label spellings the model may return.
// Keys are folded with foldLabel before lookup.
var labels = map[string]Level{
	"critical": LevelCritical,
	"severe":   LevelCritical,
	"危険":       LevelCritical,
	"重大":       LevelCritical,
	"high":     LevelHigh,
	"高":        LevelHigh,
	"高い":       LevelHigh,
	"高リスク":     LevelHigh,
	"medium":   LevelMedium,
	"moderate": LevelMedium,
	"中":        LevelMedium,
	"中程度":      LevelMedium,
	"中リスク":     LevelMedium,
	"low":      LevelLow,
	"none":     LevelLow,
	"safe":     LevelLow,
	"低":        LevelLow,
	"低い":       LevelLow,
	"低リスク":     LevelLow,
	"なし":       LevelLow,
}

// Normalize maps a raw model label onto a tier. Matching ignores case,
// whitespace, and full-width forms. Anything else, including the empty
// string, resolves to FallbackLevel.
func Normalize(raw string) Level {
	if l, ok := labels[foldLabel(raw)]; ok {
		return l
	}
	return FallbackLevel
}

func foldLabel(s string) string {
	s = width.Fold.String(s)
	s = strings.Join(strings.Fields(s), "")
	return strings.ToLower(s)
}

// ParseLevel parses a canonical level name as produced by String.
func ParseLevel(s string) (Level, error) {
	for l, name := range names {
		if strings.EqualFold(s, name) {
			return l, nil
		}
	}
	return LevelError, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// Levels returns every level, most severe first.
func Levels() []Level {
	return []Level{LevelCritical, LevelHigh, LevelMedium, LevelLow, LevelError}
}

func (l Level) String() string {
	if name, ok := names[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Label returns the Japanese display label used in exports.
func (l Level) Label() string {
	if label, ok := localized[l]; ok {
		return label
	}
	return l.String()
}

// Flagged reports whether l is a tier above the safest one.
func (l Level) Flagged() bool {
	return l >= LevelMedium
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(data []byte) error {
	v, err := ParseLevel(string(data))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
