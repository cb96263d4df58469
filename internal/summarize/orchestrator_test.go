package summarize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"minutegen/internal/domain"
	"minutegen/internal/engine"
)

const validMinutesJSON = `{
  "summary": "The team agreed on the release plan.",
  "decisions": ["Ship the release on Friday"],
  "actionItems": [{"text": "Prepare release notes", "owner": "Dana"}],
  "nextSteps": ["Review the rollout checklist"]
}`

const missingOwnerJSON = `{
  "summary": "The team agreed on the release plan.",
  "decisions": ["Ship the release on Friday"],
  "actionItems": [{"text": "Prepare release notes", "owner": ""}],
  "nextSteps": []
}`

// scriptedLLM answers map prompts (no schema) with mapResponse and
// structured prompts with extractResponses in order, repeating the last.
type scriptedLLM struct {
	mu               sync.Mutex
	mapResponse      string
	extractResponses []string

	mapCalls       int
	extractCalls   int
	extractPrompts []string
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt, schema string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schema == "" {
		s.mapCalls++
		return s.mapResponse, nil
	}

	s.extractCalls++
	s.extractPrompts = append(s.extractPrompts, prompt)
	idx := s.extractCalls - 1
	if idx >= len(s.extractResponses) {
		idx = len(s.extractResponses) - 1
	}
	return s.extractResponses[idx], nil
}

func quickRetry() engine.RetryPolicy {
	return engine.RetryPolicy{MaxAttempts: 1}
}

func shortTranscript(text string) domain.Transcript {
	return domain.Transcript{
		Segments: []domain.TranscriptSegment{{Text: text, StartSec: 0, EndSec: 60, Confidence: 0.9}},
		Text:     text,
	}
}

func TestSummarizeValidFirstAttempt(t *testing.T) {
	llm := &scriptedLLM{extractResponses: []string{validMinutesJSON}}
	o := New(llm, 2, quickRetry())

	doc, err := o.Summarize(context.Background(), shortTranscript("we planned the release"), domain.MeetingMetadata{Title: "Planning"}, domain.JobConfig{MaxSummaryWords: 100, MaxRetries: 3})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if llm.extractCalls != 1 {
		t.Fatalf("extraction called %d times, want 1", llm.extractCalls)
	}
	if llm.mapCalls != 0 {
		t.Fatalf("short transcript should skip the map phase, got %d map calls", llm.mapCalls)
	}
	if doc.Degraded {
		t.Fatal("document should not be degraded")
	}
	if len(doc.ActionItems) != 1 || doc.ActionItems[0].Owner != "Dana" {
		t.Fatalf("unexpected action items: %+v", doc.ActionItems)
	}
}

func TestSummarizeMissingOwnerTriggersCorrectiveRepromptThenFallback(t *testing.T) {
	// The model never supplies an owner: one corrective re-prompt, then
	// the fallback owner fills in.
	llm := &scriptedLLM{extractResponses: []string{missingOwnerJSON}}
	o := New(llm, 2, quickRetry())

	doc, err := o.Summarize(context.Background(), shortTranscript("we planned the release"), domain.MeetingMetadata{}, domain.JobConfig{MaxSummaryWords: 100, MaxRetries: 1})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if llm.extractCalls != 2 {
		t.Fatalf("extraction called %d times, want 2 (initial + one corrective)", llm.extractCalls)
	}
	reprompt := llm.extractPrompts[1]
	if !strings.Contains(reprompt, "owner is missing") {
		t.Fatalf("corrective prompt does not carry the validation problem: %q", reprompt)
	}
	if !strings.Contains(reprompt, missingOwnerJSON) {
		t.Fatal("corrective prompt does not carry the previous response")
	}

	if doc.Degraded {
		t.Fatal("missing-owner fallback must not mark the document degraded")
	}
	if len(doc.ActionItems) != 1 || doc.ActionItems[0].Owner != FallbackOwner {
		t.Fatalf("unexpected action items: %+v", doc.ActionItems)
	}
}

func TestSummarizeCorrectedResponseIsAccepted(t *testing.T) {
	llm := &scriptedLLM{extractResponses: []string{missingOwnerJSON, validMinutesJSON}}
	o := New(llm, 2, quickRetry())

	doc, err := o.Summarize(context.Background(), shortTranscript("we planned the release"), domain.MeetingMetadata{}, domain.JobConfig{MaxSummaryWords: 100, MaxRetries: 3})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if llm.extractCalls != 2 {
		t.Fatalf("extraction called %d times, want 2", llm.extractCalls)
	}
	if doc.Degraded || doc.ActionItems[0].Owner != "Dana" {
		t.Fatalf("corrected document not used: %+v", doc)
	}
}

func TestSummarizeDegradesToRawTextAfterRetries(t *testing.T) {
	llm := &scriptedLLM{extractResponses: []string{"the model rambled instead of emitting structure"}}
	o := New(llm, 2, quickRetry())

	doc, err := o.Summarize(context.Background(), shortTranscript("we planned the release"), domain.MeetingMetadata{}, domain.JobConfig{MaxSummaryWords: 100, MaxRetries: 1})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if llm.extractCalls != 2 {
		t.Fatalf("extraction called %d times, want 2", llm.extractCalls)
	}
	if !doc.Degraded {
		t.Fatal("document should be marked degraded")
	}
	if !strings.Contains(doc.Summary, "the model rambled") {
		t.Fatalf("degraded summary should carry the raw output, got %q", doc.Summary)
	}
	if doc.Decisions == nil || doc.ActionItems == nil || doc.NextSteps == nil {
		t.Fatal("degraded document lists must be empty, not nil")
	}
}

func TestSummarizeMapReducesLongTranscript(t *testing.T) {
	llm := &scriptedLLM{
		mapResponse:      "condensed portion.",
		extractResponses: []string{validMinutesJSON},
	}
	o := New(llm, 1, quickRetry())
	o.windowWords = 10
	o.overlapWords = 2

	words := make([]string, 25)
	for i := range words {
		words[i] = "word"
	}

	var progressTotal int
	o.OnProgress = func(done, total int) { progressTotal = total }

	doc, err := o.Summarize(context.Background(), shortTranscript(strings.Join(words, " ")), domain.MeetingMetadata{}, domain.JobConfig{MaxSummaryWords: 100})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	// 25 words, 10-word windows stepping 8: three windows.
	if llm.mapCalls != 3 {
		t.Fatalf("map phase called %d times, want 3", llm.mapCalls)
	}
	if progressTotal != 3 {
		t.Fatalf("progress total = %d, want 3", progressTotal)
	}
	if llm.extractCalls != 1 {
		t.Fatalf("extraction called %d times, want 1", llm.extractCalls)
	}
	if doc.Summary == "" {
		t.Fatal("expected a summary")
	}
}

func TestSummarizeEmptyTranscriptIsFatal(t *testing.T) {
	o := New(&scriptedLLM{}, 1, quickRetry())

	_, err := o.Summarize(context.Background(), domain.Transcript{}, domain.MeetingMetadata{}, domain.JobConfig{})

	var fatal *domain.PipelineFatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected PipelineFatalError, got %v", err)
	}
}

func TestSummarizeAllPlaceholdersDegrades(t *testing.T) {
	llm := &scriptedLLM{}
	o := New(llm, 1, quickRetry())

	transcript := domain.Transcript{
		Segments: []domain.TranscriptSegment{{Text: "", StartSec: 0, EndSec: 30}},
	}

	doc, err := o.Summarize(context.Background(), transcript, domain.MeetingMetadata{}, domain.JobConfig{})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if !doc.Degraded {
		t.Fatal("document should be degraded when no speech was transcribed")
	}
	if llm.mapCalls != 0 || llm.extractCalls != 0 {
		t.Fatal("no LLM calls expected for an empty transcript")
	}
}

func TestSummarizeTruncatesFinalSummary(t *testing.T) {
	long := strings.Repeat("sentence one ends here. ", 50)
	payload := `{"summary": ` + quoteJSON(long) + `, "decisions": [], "actionItems": [], "nextSteps": []}`
	llm := &scriptedLLM{extractResponses: []string{payload}}
	o := New(llm, 1, quickRetry())

	doc, err := o.Summarize(context.Background(), shortTranscript("we planned the release"), domain.MeetingMetadata{}, domain.JobConfig{MaxSummaryWords: 20})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if n := wordCount(doc.Summary); n > 21 {
		t.Fatalf("summary has %d words, want at most 21 including the ellipsis", n)
	}
	if !strings.HasSuffix(doc.Summary, "...") {
		t.Fatalf("truncated summary should end with an ellipsis: %q", doc.Summary)
	}
}

func quoteJSON(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
