package scoring

import "testing"

func TestCountFillerWords(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       int
	}{
		{"empty", "", 0},
		{"no fillers", "the quick brown fox jumps", 0},
		{"single token filler", "um so I went there", 1},
		{"repeated filler", "um, um, right, um", 3},
		{"multi token phrase", "it was, you know, fine", 1},
		{"phrase split by punctuation", "kind, of", 1},
		{"case insensitive", "UM I MEAN maybe", 2},
		{"mixed phrases", "um you know it was kind of like basically done", 5},
		{"phrase not contiguous", "you really know", 0},
		{"filler inside word does not count", "umbrella kindness", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountFillerWords(tt.transcript); got != tt.want {
				t.Fatalf("CountFillerWords(%q) = %d, want %d", tt.transcript, got, tt.want)
			}
		})
	}
}

func TestCountFillerWordsOverlappingPhrases(t *testing.T) {
	// "sort of" and "kind of" share the "of" token; both phrases count their
	// own occurrences independently.
	if got := CountFillerWords("sort of kind of"); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
