// Package summarize turns a finished transcript into a schema-validated
// minutes document via map-reduce prompting of the LLM engine.
package summarize

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"minutegen/internal/domain"
	"minutegen/internal/engine"
)

const (
	// Window and overlap sizes, in words, for partitioning transcripts
	// that exceed one context window.
	defaultWindowWords  = 3000
	defaultOverlapWords = 200
)

type Orchestrator struct {
	llm          engine.LLMEngine
	retry        engine.RetryPolicy
	concurrency  int
	windowWords  int
	overlapWords int

	// OnProgress, when set, is called after each map window finishes.
	OnProgress func(done, total int)
}

func New(llm engine.LLMEngine, concurrency int, retry engine.RetryPolicy) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		llm:          llm,
		retry:        retry,
		concurrency:  concurrency,
		windowWords:  defaultWindowWords,
		overlapWords: defaultOverlapWords,
	}
}

// Summarize produces the MinutesDocument for a transcript. Long
// transcripts are partitioned into overlapping windows summarized
// independently and reduced; the final extraction pass asks for the
// minutes schema and re-prompts with the validation errors up to
// cfg.MaxRetries times before degrading to a raw-text fallback.
func (o *Orchestrator) Summarize(ctx context.Context, transcript domain.Transcript, meta domain.MeetingMetadata, cfg domain.JobConfig) (domain.MinutesDocument, error) {
	if len(transcript.Segments) == 0 {
		return domain.MinutesDocument{}, &domain.PipelineFatalError{
			Stage:  domain.StateSummarizing,
			Reason: "transcript has no segments",
		}
	}

	text := strings.TrimSpace(transcript.Text)
	if text == "" {
		// Every chunk degraded to a placeholder; nothing to extract.
		return domain.MinutesDocument{
			Summary:     "No speech could be transcribed from this recording.",
			Decisions:   []string{},
			ActionItems: []domain.ActionItem{},
			NextSteps:   []string{},
			Degraded:    true,
		}, nil
	}

	condensed, err := o.reduce(ctx, text)
	if err != nil {
		return domain.MinutesDocument{}, err
	}

	doc, err := o.extract(ctx, condensed, meta, cfg)
	if err != nil {
		return domain.MinutesDocument{}, err
	}

	doc.Summary = TruncateWords(doc.Summary, cfg.MaxSummaryWords)
	return doc, nil
}

// reduce repeatedly map-summarizes the text until it fits one window.
// The number of LLM calls is bounded by O(ceil(len/window)) per round
// and the text shrinks every round.
func (o *Orchestrator) reduce(ctx context.Context, text string) (string, error) {
	for round := 0; wordCount(text) > o.windowWords; round++ {
		if round >= 8 {
			// The model is not compressing; stop rather than loop.
			log.Printf("summarize: reduction stalled after %d rounds, truncating input", round)
			return truncateToWords(text, o.windowWords), nil
		}

		windows := windowText(text, o.windowWords, o.overlapWords)
		partials, err := o.mapWindows(ctx, windows)
		if err != nil {
			return "", err
		}
		text = strings.Join(partials, "\n\n")
	}
	return text, nil
}

// mapWindows summarizes each window concurrently into index-keyed slots;
// the join is by index, never by completion order.
func (o *Orchestrator) mapWindows(ctx context.Context, windows []string) ([]string, error) {
	slots := make([]string, len(windows))

	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup
	var done int
	var mu sync.Mutex

	for i := range windows {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			prompt := fmt.Sprintf(
				"Summarize this portion of a meeting transcript in detail, keeping every decision, task assignment, owner name, and deadline:\n\n%s",
				windows[idx])

			var partial string
			err := o.retry.Do(ctx, func(callCtx context.Context) error {
				out, err := o.llm.Generate(callCtx, prompt, "")
				if err != nil {
					return err
				}
				partial = out
				return nil
			})
			if err != nil {
				// A lost window degrades the summary but not the job.
				log.Printf("summarize: window %d failed: %v", idx, err)
				partial = ""
			}
			slots[idx] = partial

			mu.Lock()
			done++
			d := done
			mu.Unlock()
			if o.OnProgress != nil {
				o.OnProgress(d, len(windows))
			}
		}(i)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// extract runs the final structured pass with corrective re-prompts.
func (o *Orchestrator) extract(ctx context.Context, text string, meta domain.MeetingMetadata, cfg domain.JobConfig) (domain.MinutesDocument, error) {
	prompt := extractionPrompt(text, meta, cfg.MaxSummaryWords)

	var lastRaw string
	var lastValidation Validation

	attempts := cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.MinutesDocument{}, err
		}

		var raw string
		err := o.retry.Do(ctx, func(callCtx context.Context) error {
			out, err := o.llm.Generate(callCtx, prompt, MinutesSchema)
			if err != nil {
				return err
			}
			raw = out
			return nil
		})
		if err != nil {
			return domain.MinutesDocument{}, fmt.Errorf("minutes extraction call: %w", err)
		}

		lastRaw = raw
		lastValidation = ParseMinutes(raw)
		if lastValidation.Valid() {
			doc := lastValidation.Doc
			normalizeLists(&doc)
			return doc, nil
		}

		schemaErr := &domain.SummarizationSchemaError{Problems: lastValidation.Problems}
		log.Printf("summarize: attempt %d: %v", attempt+1, schemaErr)
		prompt = correctivePrompt(text, meta, cfg.MaxSummaryWords, raw, lastValidation.Problems)
	}

	// Retries exhausted. Missing owners have a defined fallback; any
	// other problem degrades to the raw text.
	if lastValidation.OnlyMissingOwners() {
		doc := lastValidation.Doc
		for i := range doc.ActionItems {
			if strings.TrimSpace(doc.ActionItems[i].Owner) == "" {
				doc.ActionItems[i].Owner = FallbackOwner
			}
		}
		normalizeLists(&doc)
		return doc, nil
	}

	log.Printf("summarize: degrading to raw output after %d attempts", attempts)
	return domain.MinutesDocument{
		Summary:     TruncateWords(strings.TrimSpace(lastRaw), cfg.MaxSummaryWords),
		Decisions:   []string{},
		ActionItems: []domain.ActionItem{},
		NextSteps:   []string{},
		Degraded:    true,
	}, nil
}

func extractionPrompt(text string, meta domain.MeetingMetadata, maxWords int) string {
	var b strings.Builder
	b.WriteString("You are preparing the official minutes of a meeting")
	if meta.Title != "" {
		fmt.Fprintf(&b, " titled %q", meta.Title)
	}
	if meta.Date != "" {
		fmt.Fprintf(&b, " held on %s", meta.Date)
	}
	if len(meta.Participants) > 0 {
		fmt.Fprintf(&b, " with participants %s", strings.Join(meta.Participants, ", "))
	}
	b.WriteString(".\n\n")
	fmt.Fprintf(&b, "Respond with a single JSON object matching this schema:\n%s\n\n", MinutesSchema)
	fmt.Fprintf(&b, "The summary must stay under %d words. Every action item must name its owner.\n\nTranscript:\n%s", maxWords, text)
	return b.String()
}

func correctivePrompt(text string, meta domain.MeetingMetadata, maxWords int, previous string, problems []string) string {
	return fmt.Sprintf(
		"%s\n\nYour previous response was rejected:\n%s\n\nProblems:\n- %s\n\nReturn a corrected JSON object.",
		extractionPrompt(text, meta, maxWords),
		previous,
		strings.Join(problems, "\n- "))
}

func normalizeLists(doc *domain.MinutesDocument) {
	if doc.Decisions == nil {
		doc.Decisions = []string{}
	}
	if doc.ActionItems == nil {
		doc.ActionItems = []domain.ActionItem{}
	}
	if doc.NextSteps == nil {
		doc.NextSteps = []string{}
	}
}
