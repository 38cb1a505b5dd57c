package scoring

import (
	"regexp"
	"strings"
)

// fillerPhrases is the fixed ordered set of filler phrases counted as a
// speech-fluency signal. Multi-token phrases match contiguous token runs;
// occurrences are counted per phrase independently, so a token may
// contribute to more than one phrase.
var fillerPhrases = [][]string{
	{"um"},
	{"uh"},
	{"like"},
	{"you", "know"},
	{"kind", "of"},
	{"sort", "of"},
	{"i", "mean"},
	{"basically"},
	{"actually"},
}

var fillerTokenRe = regexp.MustCompile(`[a-z']+`)

// CountFillerWords counts filler-phrase occurrences in a transcript.
// Tokenization is on word boundaries with lowercasing, so punctuation
// between words does not break a phrase.
func CountFillerWords(transcript string) int {
	tokens := fillerTokenRe.FindAllString(strings.ToLower(transcript), -1)
	if len(tokens) == 0 {
		return 0
	}

	total := 0
	for _, phrase := range fillerPhrases {
		for i := 0; i+len(phrase) <= len(tokens); i++ {
			match := true
			for j, want := range phrase {
				if tokens[i+j] != want {
					match = false
					break
				}
			}
			if match {
				total++
			}
		}
	}
	return total
}
