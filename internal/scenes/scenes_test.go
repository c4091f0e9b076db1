package scenes

import "testing"

func TestCount(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   int
	}{
		{"empty", "", 0},
		{"example", "Escena 1\nS2:\nfoo", 2},
		{"whitespace and case", "   ESCENA uno  \n\t s2 \n", 2},
		{"crlf", "Escena 1\r\nEscena 2\r\n", 2},
		{"blank lines", "\n\n\n", 0},
		{"any s word counts", "Sala amplia\nsol de tarde\ncocina", 2},
		{"no matches", "intro\nplano general\nfin", 0},
		{"binary-ish noise", "\x00\x01esc\nescenario", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.script); got != tt.want {
				t.Errorf("Count(%q) = %d, want %d", tt.script, got, tt.want)
			}
		})
	}
}

func TestCountInvariantToPadding(t *testing.T) {
	base := Count("Escena 1\nS2:\nfoo")
	padded := Count("   escena 1   \n\tS2:  \n  FOO ")
	if base != padded {
		t.Errorf("padding/case changed the count: %d vs %d", base, padded)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		script    string
		hasScript bool
		images    int
		want      int
	}{
		{"no script, no images", "", false, 0, 2},
		{"no script, one image", "", false, 1, 2},
		{"no script, three images", "", false, 3, 3},
		{"script wins over images", "Escena 1", true, 5, 1},
		{"script without scenes", "hola", true, 5, 0},
		{"empty script falls back", "  \n", true, 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.script, tt.hasScript, tt.images); got != tt.want {
				t.Errorf("Resolve = %d, want %d", got, tt.want)
			}
		})
	}
}
