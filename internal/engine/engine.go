// Package engine defines the capability interfaces the pipeline consumes
// and the HTTP/ffmpeg implementations used in production. Engines are
// injected into each orchestrator call; nothing here is a singleton.
package engine

import (
	"context"

	"minutegen/internal/domain"
)

// Audio is decoded, normalized source audio: mono PCM in [-1,1].
type Audio struct {
	Samples     []float64
	SampleRate  int
	DurationSec float64
}

// ASREngine converts one audio chunk into transcript segments. Returned
// segment times are relative to the chunk start; the transcription
// orchestrator shifts them to absolute time.
type ASREngine interface {
	Transcribe(ctx context.Context, chunk domain.AudioChunk) ([]domain.TranscriptSegment, error)
}

// LLMEngine generates raw text for a prompt. schema, when non-empty, is
// a JSON schema the model is instructed to conform to.
type LLMEngine interface {
	Generate(ctx context.Context, prompt string, schema string) (string, error)
}

// EmbeddingEngine produces an embedding vector for a text.
type EmbeddingEngine interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// AudioDecoder loads a file reference into normalized audio samples.
type AudioDecoder interface {
	Load(ctx context.Context, fileRef string) (Audio, error)
}
