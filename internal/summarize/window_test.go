package summarize

import (
	"strings"
	"testing"
)

func TestWindowTextBoundsAndOverlap(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = string(rune('a' + i%26))
	}
	text := strings.Join(words, " ")

	windows := windowText(text, 30, 5)

	// Stepping 25 words over 100: four windows.
	if len(windows) != 4 {
		t.Fatalf("got %d windows, want 4", len(windows))
	}
	for i, w := range windows {
		if n := wordCount(w); n > 30 {
			t.Fatalf("window %d has %d words, exceeds the window size", i, n)
		}
	}

	// Consecutive windows share the overlap words.
	first := strings.Fields(windows[0])
	second := strings.Fields(windows[1])
	tail := strings.Join(first[len(first)-5:], " ")
	head := strings.Join(second[:5], " ")
	if tail != head {
		t.Fatalf("overlap mismatch: tail %q, head %q", tail, head)
	}
}

func TestWindowTextShortInputIsSingleWindow(t *testing.T) {
	windows := windowText("just a few words", 30, 5)
	if len(windows) != 1 || windows[0] != "just a few words" {
		t.Fatalf("got %v", windows)
	}
}

func TestTruncateWordsPrefersSentenceBoundary(t *testing.T) {
	text := "First sentence here. Second sentence follows along. Third one goes on and on"

	got := TruncateWords(text, 8)

	if got != "First sentence here. Second sentence follows along. ..." {
		t.Fatalf("got %q", got)
	}
}

func TestTruncateWordsMidSentenceWhenNoBoundary(t *testing.T) {
	text := "a long run of words with no punctuation at all anywhere"

	got := TruncateWords(text, 5)

	if got != "a long run of words ..." {
		t.Fatalf("got %q", got)
	}
}

func TestTruncateWordsUnderLimitUnchanged(t *testing.T) {
	text := "already short enough."
	if got := TruncateWords(text, 50); got != text {
		t.Fatalf("got %q", got)
	}
	if got := TruncateWords(text, 0); got != text {
		t.Fatalf("zero limit should disable truncation, got %q", got)
	}
}
