package domain

import (
	"errors"
	"fmt"
)

// ErrCancelled is the failure cause recorded when a job is cancelled.
var ErrCancelled = errors.New("cancelled")

// IngestionError marks unreadable or zero-duration input audio.
type IngestionError struct {
	Reason string
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed: %s", e.Reason)
}

// TranscriptionError records a chunk that exhausted its ASR retries.
// It degrades to a placeholder segment and never fails the job.
type TranscriptionError struct {
	ChunkIndex int
	Err        error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription of chunk %d exhausted retries: %v", e.ChunkIndex, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// SummarizationSchemaError records LLM output that stayed unparsable
// after corrective retries. It degrades to a raw-text fallback document.
type SummarizationSchemaError struct {
	Problems []string
}

func (e *SummarizationSchemaError) Error() string {
	return fmt.Sprintf("minutes failed schema validation: %v", e.Problems)
}

// PipelineFatalError is a stage precondition violation; it terminates
// the job.
type PipelineFatalError struct {
	Stage  JobState
	Reason string
}

func (e *PipelineFatalError) Error() string {
	return fmt.Sprintf("stage %s: %s", e.Stage, e.Reason)
}
