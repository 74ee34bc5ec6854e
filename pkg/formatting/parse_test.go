package formatting_test

import (
	"errors"
	"testing"

	"github.com/JaimeStill/patrol/pkg/formatting"
)

type sample struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestParse(t *testing.T) {
	t.Run("direct JSON", func(t *testing.T) {
		got, err := formatting.Parse[sample](`{"name":"test","value":42}`)
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if got.Name != "test" || got.Value != 42 {
			t.Errorf("Parse = %+v, want {Name:test Value:42}", got)
		}
	})

	t.Run("markdown fenced JSON", func(t *testing.T) {
		input := "```json\n{\"name\":\"fenced\",\"value\":7}\n```"
		got, err := formatting.Parse[sample](input)
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if got.Name != "fenced" || got.Value != 7 {
			t.Errorf("Parse = %+v, want {Name:fenced Value:7}", got)
		}
	})

	t.Run("fenced array with surrounding prose", func(t *testing.T) {
		input := "Results follow:\n```\n[{\"name\":\"a\",\"value\":1}]\n```\nEnd."
		got, err := formatting.Parse[[]sample](input)
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if len(got) != 1 || got[0].Name != "a" {
			t.Errorf("Parse = %+v, want one element named a", got)
		}
	})

	t.Run("array embedded in prose", func(t *testing.T) {
		input := `Here you go: [{"name":"a","value":1},{"name":"b","value":2}] hope that helps`
		got, err := formatting.Parse[[]sample](input)
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if len(got) != 2 || got[1].Value != 2 {
			t.Errorf("Parse = %+v, want two elements", got)
		}
	})

	t.Run("object embedded in prose", func(t *testing.T) {
		input := `Verdict: {"name":"x","value":9}.`
		got, err := formatting.Parse[sample](input)
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if got.Value != 9 {
			t.Errorf("Value = %d, want 9", got.Value)
		}
	})

	t.Run("object where array expected", func(t *testing.T) {
		_, err := formatting.Parse[[]sample](`{"name":"x","value":1}`)
		if !errors.Is(err, formatting.ErrParseFailed) {
			t.Errorf("error = %v, want ErrParseFailed", err)
		}
	})

	t.Run("invalid content returns ErrParseFailed", func(t *testing.T) {
		_, err := formatting.Parse[sample]("not json at all")
		if !errors.Is(err, formatting.ErrParseFailed) {
			t.Errorf("error = %v, want ErrParseFailed", err)
		}
	})

	t.Run("empty string returns ErrParseFailed", func(t *testing.T) {
		_, err := formatting.Parse[sample]("")
		if !errors.Is(err, formatting.ErrParseFailed) {
			t.Errorf("error = %v, want ErrParseFailed", err)
		}
	})

	t.Run("parses into map type", func(t *testing.T) {
		got, err := formatting.Parse[map[string]any](`noise {"key":"value"} noise`)
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if got["key"] != "value" {
			t.Errorf("got[key] = %v, want value", got["key"])
		}
	})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"cut", "abcdef", 5, "abcde..."},
		{"multibyte", "商品名テスト", 3, "商品名..."},
		{"disabled", "abcdef", 0, "abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatting.Truncate(tt.input, tt.n); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
			}
		})
	}
}
