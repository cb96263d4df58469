// Package transcribe drives the ASR engine across audio chunks and
// stitches the per-chunk results into one ordered transcript.
package transcribe

import (
	"context"
	"log"
	"sync"

	"minutegen/internal/domain"
	"minutegen/internal/engine"
)

type Orchestrator struct {
	asr         engine.ASREngine
	concurrency int
	retry       engine.RetryPolicy

	// OnProgress, when set, is called after each chunk finishes with
	// (done, total).
	OnProgress func(done, total int)
}

func New(asr engine.ASREngine, concurrency int, retry engine.RetryPolicy) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{asr: asr, concurrency: concurrency, retry: retry}
}

// Transcribe dispatches every chunk to the ASR engine, bounded by the
// configured concurrency, and merges the results by chunk index. A chunk
// that exhausts its retries degrades to an empty placeholder segment so
// the timeline stays continuous. Output ordering is by time, independent
// of which calls finish first.
func (o *Orchestrator) Transcribe(ctx context.Context, chunks []domain.AudioChunk) (domain.Transcript, error) {
	if len(chunks) == 0 {
		return domain.Transcript{}, &domain.PipelineFatalError{
			Stage:  domain.StateTranscribing,
			Reason: "empty chunk list",
		}
	}

	// Each worker writes only its own index slot; the merge below is the
	// sole mechanism establishing final order.
	slots := make([][]domain.TranscriptSegment, len(chunks))

	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup
	var done int
	var mu sync.Mutex

	for i := range chunks {
		// Cancellation is checked between dispatches.
		select {
		case <-ctx.Done():
			wg.Wait()
			return domain.Transcript{}, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			slots[idx] = o.transcribeChunk(ctx, chunks[idx])

			mu.Lock()
			done++
			d := done
			mu.Unlock()
			if o.OnProgress != nil {
				o.OnProgress(d, len(chunks))
			}
		}(i)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return domain.Transcript{}, err
	}

	return Merge(slots), nil
}

func (o *Orchestrator) transcribeChunk(ctx context.Context, chunk domain.AudioChunk) []domain.TranscriptSegment {
	var segments []domain.TranscriptSegment

	err := o.retry.Do(ctx, func(callCtx context.Context) error {
		out, err := o.asr.Transcribe(callCtx, chunk)
		if err != nil {
			return err
		}
		segments = out
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		terr := &domain.TranscriptionError{ChunkIndex: chunk.Index, Err: err}
		log.Printf("%v; inserting placeholder segment", terr)
		return []domain.TranscriptSegment{placeholderSegment(chunk)}
	}

	out := make([]domain.TranscriptSegment, 0, len(segments))
	for _, s := range segments {
		s.ChunkIndex = chunk.Index
		s.StartSec += chunk.StartSec
		s.EndSec += chunk.StartSec
		if s.EndSec > chunk.EndSec {
			s.EndSec = chunk.EndSec
		}
		if s.Confidence < 0 {
			s.Confidence = 0
		}
		if s.Confidence > 1 {
			s.Confidence = 1
		}
		out = append(out, s)
	}
	return out
}

// placeholderSegment keeps timeline continuity for a chunk whose ASR
// calls all failed: empty text, marked low-confidence.
func placeholderSegment(chunk domain.AudioChunk) domain.TranscriptSegment {
	return domain.TranscriptSegment{
		ChunkIndex: chunk.Index,
		Text:       "",
		StartSec:   chunk.StartSec,
		EndSec:     chunk.EndSec,
		Confidence: 0,
	}
}
