// Package scoring grades a practice attempt by aligning the expected text
// against the recognized word stream and applying accent heuristics.
package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/SamuelHein26/ai-speech-accent-practice/internal/transcribe"
)

// Accent is the pronunciation target of an attempt.
type Accent string

const (
	AccentAmerican Accent = "american"
	AccentBritish  Accent = "british"
)

// ParseAccent validates a raw accent target.
func ParseAccent(raw string) (Accent, bool) {
	switch Accent(strings.ToLower(strings.TrimSpace(raw))) {
	case AccentAmerican:
		return AccentAmerican, true
	case AccentBritish:
		return AccentBritish, true
	}
	return "", false
}

// Word statuses and notes carried on feedback items.
const (
	StatusOK             = "ok"
	StatusBad            = "bad"
	StatusAccentMismatch = "accent_mismatch"

	NoteWordMissing   = "word_missing"
	NoteLowConfidence = "low_confidence"
	NoteMismatch      = "mismatch"
)

// WordFeedback grades one token of the expected text. Text preserves the
// original token including punctuation; Spoken and Confidence are set only
// when a recognized word was consumed for this token.
type WordFeedback struct {
	Text       string   `json:"text"`
	Status     string   `json:"status"`
	Note       string   `json:"note,omitempty"`
	Spoken     string   `json:"spoken,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// FeedbackItem is the outward shape of one graded token, used in train
// responses and persisted rows. The consumed spoken word and its confidence
// stay internal to the engine.
type FeedbackItem struct {
	Text   string `json:"text"`
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// Items strips engine-internal fields from feedback.
func Items(feedback []WordFeedback) []FeedbackItem {
	items := make([]FeedbackItem, len(feedback))
	for i, f := range feedback {
		items[i] = FeedbackItem{Text: f.Text, Status: f.Status, Note: f.Note}
	}
	return items
}

const confidenceThreshold = 0.85

var (
	wordSplitRe = regexp.MustCompile(`\s+`)
	punctRe     = regexp.MustCompile(`^[^\w']+|[^\w']+$`)
)

// Words whose post-vocalic R separates American from British pronunciation.
var rhoticSensitive = map[string]struct{}{
	"car": {}, "far": {}, "weather": {}, "colour": {}, "color": {},
	"near": {}, "door": {}, "floor": {},
}

// Words where American speakers flap the T; a crisp T marks British speech.
var britishFlapWords = map[string]struct{}{
	"water": {}, "butter": {}, "city": {}, "better": {},
}

// Words pronounced with a broad A in British English.
var broadAWords = map[string]struct{}{
	"bath": {}, "path": {}, "glass": {}, "can't": {}, "dance": {},
}

func stripPunct(token string) string {
	return strings.ToLower(punctRe.ReplaceAllString(token, ""))
}

func tokenize(text string) []string {
	fields := wordSplitRe.Split(strings.TrimSpace(text), -1)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Evaluate compares the expected text against the recognized word stream and
// returns one feedback item per whitespace token of expectedText plus an
// overall score in [0, 100] rounded to two decimals.
//
// Alignment is a strict one-to-one forward walk: the cursor into recognized
// words never rewinds, so a single insertion or deletion in the recognized
// stream desynchronizes all later comparisons. Fuzzy realignment would
// change the scoring semantics, so none is attempted.
func Evaluate(expectedText string, recognized []transcribe.Word, target Accent) ([]WordFeedback, float64) {
	expected := tokenize(expectedText)
	feedback := make([]WordFeedback, 0, len(expected))

	cursor := 0
	for _, token := range expected {
		stripped := stripPunct(token)

		// Pure punctuation tokens are preserved as ok and consume nothing.
		if stripped == "" {
			feedback = append(feedback, WordFeedback{Text: token, Status: StatusOK})
			continue
		}

		if cursor >= len(recognized) {
			feedback = append(feedback, WordFeedback{Text: token, Status: StatusBad, Note: NoteWordMissing})
			continue
		}

		spoken := recognized[cursor]
		cursor++

		confidence := spoken.Confidence
		item := WordFeedback{Text: token, Spoken: spoken.Word, Confidence: &confidence}

		switch {
		case stripPunct(spoken.Word) != stripped:
			item.Status = StatusBad
			item.Note = NoteMismatch
		case confidence >= confidenceThreshold:
			item.Status = StatusOK
		default:
			item.Status = StatusBad
			item.Note = NoteLowConfidence
		}

		feedback = append(feedback, item)
	}

	applyAccentRules(feedback, target)

	okCount := 0
	scoredCount := 0
	for _, item := range feedback {
		if stripPunct(item.Text) == "" {
			continue
		}
		scoredCount++
		if item.Status == StatusOK {
			okCount++
		}
	}

	if scoredCount == 0 {
		return feedback, 0.0
	}
	score := math.Round(float64(okCount)/float64(scoredCount)*100*100) / 100
	return feedback, score
}

// applyAccentRules reclassifies statuses toward accent_mismatch. It only
// considers tokens that consumed a recognized word.
func applyAccentRules(feedback []WordFeedback, target Accent) {
	for i := range feedback {
		item := &feedback[i]
		stripped := stripPunct(item.Text)
		if stripped == "" || item.Spoken == "" {
			continue
		}

		confidence := 0.0
		if item.Confidence != nil {
			confidence = *item.Confidence
		}

		switch target {
		case AccentAmerican:
			if isRhoticPattern(stripped) {
				if item.Status == StatusOK && confidence < 0.92 {
					item.Status = StatusAccentMismatch
					item.Note = "Keep the American R pronounced."
				} else if item.Status == StatusBad && item.Note == NoteLowConfidence {
					item.Status = StatusAccentMismatch
					item.Note = "Sounded non-rhotic — emphasise the American R."
				}
			}
			if _, ok := broadAWords[stripped]; ok && item.Status == StatusOK && confidence < 0.90 {
				item.Status = StatusAccentMismatch
				item.Note = "Open the vowel more for American pronunciation."
			}

		case AccentBritish:
			if _, ok := britishFlapWords[stripped]; ok && confidence > 0.88 {
				item.Status = StatusAccentMismatch
				item.Note = "Use a crisp T instead of an American flap."
			} else if isRhoticPattern(stripped) && confidence > 0.90 {
				item.Status = StatusAccentMismatch
				item.Note = "Soften the ending R for a British sound."
			}
		}
	}
}

func isRhoticPattern(stripped string) bool {
	if strings.HasSuffix(stripped, "r") {
		return true
	}
	_, ok := rhoticSensitive[stripped]
	return ok
}

// BuildTip picks one coaching sentence for the attempt: the first accent
// mismatch wins, then the first bad word keyed by its note, then a generic
// encouragement for the target accent.
func BuildTip(feedback []WordFeedback, target Accent) string {
	for _, item := range feedback {
		if item.Status != StatusAccentMismatch {
			continue
		}
		if target == AccentAmerican {
			return fmt.Sprintf("Focus on the American pronunciation of %q — hold the R sound clearly.", item.Text)
		}
		return fmt.Sprintf("Try softening the consonants in %q to lean into the British tone.", item.Text)
	}

	for _, item := range feedback {
		if item.Status != StatusBad {
			continue
		}
		switch item.Note {
		case NoteLowConfidence:
			return fmt.Sprintf("Articulate %q a bit more clearly for the microphone.", item.Text)
		case NoteWordMissing:
			return fmt.Sprintf("Don't forget to include %q when you read the prompt.", item.Text)
		default:
			return fmt.Sprintf("Double-check the wording around %q next time.", item.Text)
		}
	}

	if target == AccentAmerican {
		return "Great job! Keep building that crisp American rhythm."
	}
	return "Sounding polished — keep refining those British vowel shapes."
}
