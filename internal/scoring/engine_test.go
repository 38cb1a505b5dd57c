package scoring

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/SamuelHein26/ai-speech-accent-practice/internal/transcribe"
)

func words(pairs ...any) []transcribe.Word {
	out := make([]transcribe.Word, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, transcribe.Word{Word: pairs[i].(string), Confidence: pairs[i+1].(float64)})
	}
	return out
}

func TestEvaluateAllOK(t *testing.T) {
	feedback, score := Evaluate("hello world", words("hello", 0.99, "world", 0.99), AccentAmerican)

	if len(feedback) != 2 {
		t.Fatalf("expected 2 feedback items, got %d", len(feedback))
	}
	for _, item := range feedback {
		if item.Status != StatusOK {
			t.Fatalf("expected status ok for %q, got %q (note %q)", item.Text, item.Status, item.Note)
		}
	}
	if score != 100.00 {
		t.Fatalf("expected score 100.00, got %v", score)
	}
}

func TestEvaluateRhoticAccentMismatch(t *testing.T) {
	feedback, score := Evaluate("car", words("car", 0.90), AccentAmerican)

	if len(feedback) != 1 {
		t.Fatalf("expected 1 feedback item, got %d", len(feedback))
	}
	if feedback[0].Status != StatusAccentMismatch {
		t.Fatalf("expected accent_mismatch, got %q", feedback[0].Status)
	}
	if score != 0.00 {
		t.Fatalf("expected score 0.00, got %v", score)
	}
}

func TestEvaluateRhoticHighConfidenceStaysOK(t *testing.T) {
	feedback, score := Evaluate("car", words("car", 0.95), AccentAmerican)

	if feedback[0].Status != StatusOK {
		t.Fatalf("expected ok at confidence 0.95, got %q", feedback[0].Status)
	}
	if score != 100.00 {
		t.Fatalf("expected score 100.00, got %v", score)
	}
}

func TestEvaluateBritishFlapT(t *testing.T) {
	feedback, _ := Evaluate("water", words("water", 0.95), AccentBritish)

	if feedback[0].Status != StatusAccentMismatch {
		t.Fatalf("expected accent_mismatch for confident flap word, got %q", feedback[0].Status)
	}
}

func TestEvaluateBritishRhoticInvertedDirection(t *testing.T) {
	// Confident post-vocalic R reads as American when the target is British.
	feedback, _ := Evaluate("door", words("door", 0.95), AccentBritish)
	if feedback[0].Status != StatusAccentMismatch {
		t.Fatalf("expected accent_mismatch, got %q", feedback[0].Status)
	}

	// Below the 0.90 threshold the word is left alone.
	feedback, _ = Evaluate("door", words("door", 0.89), AccentBritish)
	if feedback[0].Status != StatusOK {
		t.Fatalf("expected ok below threshold, got %q", feedback[0].Status)
	}
}

func TestEvaluateBroadA(t *testing.T) {
	feedback, _ := Evaluate("bath", words("bath", 0.87), AccentAmerican)
	if feedback[0].Status != StatusAccentMismatch {
		t.Fatalf("expected accent_mismatch for broad-A word, got %q", feedback[0].Status)
	}

	feedback, _ = Evaluate("bath", words("bath", 0.93), AccentAmerican)
	if feedback[0].Status != StatusOK {
		t.Fatalf("expected ok at high confidence, got %q", feedback[0].Status)
	}
}

func TestEvaluateLowConfidenceRhoticUpgrades(t *testing.T) {
	// bad/low_confidence on a rhotic word becomes accent_mismatch for American.
	feedback, _ := Evaluate("far", words("far", 0.50), AccentAmerican)
	if feedback[0].Status != StatusAccentMismatch {
		t.Fatalf("expected accent_mismatch, got %q (note %q)", feedback[0].Status, feedback[0].Note)
	}
}

func TestEvaluateMismatchAndMissing(t *testing.T) {
	feedback, score := Evaluate("hello big world", words("hello", 0.99, "pig", 0.99), AccentAmerican)

	if feedback[0].Status != StatusOK {
		t.Fatalf("expected first ok, got %q", feedback[0].Status)
	}
	if feedback[1].Status != StatusBad || feedback[1].Note != NoteMismatch {
		t.Fatalf("expected mismatch, got %q/%q", feedback[1].Status, feedback[1].Note)
	}
	if feedback[2].Status != StatusBad || feedback[2].Note != NoteWordMissing {
		t.Fatalf("expected word_missing, got %q/%q", feedback[2].Status, feedback[2].Note)
	}
	if score != 33.33 {
		t.Fatalf("expected score 33.33, got %v", score)
	}
}

func TestEvaluateDesyncIsNotRecovered(t *testing.T) {
	// An inserted word shifts every later comparison; the cursor never rewinds.
	feedback, _ := Evaluate("one two three", words("one", 0.99, "uh", 0.99, "two", 0.99), AccentAmerican)

	if feedback[1].Status != StatusBad || feedback[1].Note != NoteMismatch {
		t.Fatalf("expected desynced mismatch at token 2, got %q/%q", feedback[1].Status, feedback[1].Note)
	}
	if feedback[2].Status != StatusBad || feedback[2].Note != NoteMismatch {
		t.Fatalf("expected desynced mismatch at token 3, got %q/%q", feedback[2].Status, feedback[2].Note)
	}
}

func TestEvaluatePunctuationTokens(t *testing.T) {
	feedback, score := Evaluate("hello , world !", words("hello", 0.99, "world", 0.99), AccentAmerican)

	if len(feedback) != 4 {
		t.Fatalf("expected 4 feedback items, got %d", len(feedback))
	}
	if feedback[1].Status != StatusOK || feedback[1].Confidence != nil {
		t.Fatalf("expected punctuation token ok with no confidence, got %+v", feedback[1])
	}
	if feedback[3].Status != StatusOK {
		t.Fatalf("expected trailing punctuation ok, got %q", feedback[3].Status)
	}
	if score != 100.00 {
		t.Fatalf("expected score 100.00, got %v", score)
	}
}

func TestEvaluatePunctuationStrippedForComparison(t *testing.T) {
	feedback, _ := Evaluate(`"Hello," world.`, words("hello", 0.99, "World", 0.99), AccentAmerican)

	if feedback[0].Status != StatusOK {
		t.Fatalf("expected quoted token to match, got %q (note %q)", feedback[0].Status, feedback[0].Note)
	}
	if feedback[0].Text != `"Hello,"` {
		t.Fatalf("expected original token preserved, got %q", feedback[0].Text)
	}
}

func TestEvaluateFeedbackLengthInvariant(t *testing.T) {
	inputs := []string{
		"",
		"one",
		"  spaced   out   text  ",
		"punctuation , only ! here",
		"a much longer sentence with many different words to align against",
	}
	for _, text := range inputs {
		feedback, score := Evaluate(text, words("one", 0.9, "two", 0.9), AccentBritish)
		if got, want := len(feedback), len(strings.Fields(text)); got != want {
			t.Fatalf("text %q: expected %d feedback items, got %d", text, want, got)
		}
		if score < 0 || score > 100 {
			t.Fatalf("text %q: score %v out of range", text, score)
		}
	}
}

func TestEvaluateEmptyExpectedText(t *testing.T) {
	feedback, score := Evaluate("", nil, AccentAmerican)
	if len(feedback) != 0 {
		t.Fatalf("expected no feedback, got %d items", len(feedback))
	}
	if score != 0.0 {
		t.Fatalf("expected score 0.0, got %v", score)
	}
}

func TestEvaluateIsPure(t *testing.T) {
	recognized := words("car", 0.90, "is", 0.99, "far", 0.70)

	f1, s1 := Evaluate("car is far", recognized, AccentAmerican)
	f2, s2 := Evaluate("car is far", recognized, AccentAmerican)

	if s1 != s2 || !reflect.DeepEqual(f1, f2) {
		t.Fatal("expected identical results for identical inputs")
	}
}

func TestItemsStripSpokenAndConfidence(t *testing.T) {
	feedback, _ := Evaluate("car is far", words("car", 0.90, "is", 0.99, "water", 0.70), AccentAmerican)

	items := Items(feedback)
	if len(items) != len(feedback) {
		t.Fatalf("expected %d items, got %d", len(feedback), len(items))
	}
	for i, item := range items {
		if item.Text != feedback[i].Text || item.Status != feedback[i].Status || item.Note != feedback[i].Note {
			t.Fatalf("item %d = %+v, want text/status/note of %+v", i, item, feedback[i])
		}
	}

	data, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal items: %v", err)
	}
	for _, field := range []string{"spoken", "confidence"} {
		if strings.Contains(string(data), field) {
			t.Fatalf("expected %q to stay internal, got %s", field, data)
		}
	}
}

func TestParseAccent(t *testing.T) {
	if got, ok := ParseAccent(" American "); !ok || got != AccentAmerican {
		t.Fatalf("expected american, got %q ok=%v", got, ok)
	}
	if got, ok := ParseAccent("british"); !ok || got != AccentBritish {
		t.Fatalf("expected british, got %q ok=%v", got, ok)
	}
	if _, ok := ParseAccent("scottish"); ok {
		t.Fatal("expected scottish to be rejected")
	}
}

func TestBuildTip(t *testing.T) {
	accentFirst := []WordFeedback{
		{Text: "hello", Status: StatusBad, Note: NoteMismatch},
		{Text: "car", Status: StatusAccentMismatch},
	}
	tip := BuildTip(accentFirst, AccentAmerican)
	if !strings.Contains(tip, `"car"`) || !strings.Contains(tip, "American") {
		t.Fatalf("expected accent tip naming the word, got %q", tip)
	}

	tip = BuildTip(accentFirst, AccentBritish)
	if !strings.Contains(tip, `"car"`) || !strings.Contains(tip, "British") {
		t.Fatalf("expected british accent tip, got %q", tip)
	}

	badOnly := []WordFeedback{
		{Text: "hello", Status: StatusOK},
		{Text: "world", Status: StatusBad, Note: NoteLowConfidence},
	}
	tip = BuildTip(badOnly, AccentAmerican)
	if !strings.Contains(tip, `"world"`) || !strings.Contains(tip, "clearly") {
		t.Fatalf("expected low_confidence tip, got %q", tip)
	}

	missing := []WordFeedback{{Text: "world", Status: StatusBad, Note: NoteWordMissing}}
	tip = BuildTip(missing, AccentAmerican)
	if !strings.Contains(tip, "include") {
		t.Fatalf("expected word_missing tip, got %q", tip)
	}

	clean := []WordFeedback{{Text: "hello", Status: StatusOK}}
	if tip = BuildTip(clean, AccentAmerican); !strings.Contains(tip, "American") {
		t.Fatalf("expected american encouragement, got %q", tip)
	}
	if tip = BuildTip(clean, AccentBritish); !strings.Contains(tip, "British") {
		t.Fatalf("expected british encouragement, got %q", tip)
	}
}
