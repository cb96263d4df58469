// Package chunker splits decoded audio into ordered, overlapping,
// time-bounded chunks for independent transcription.
package chunker

import (
	"fmt"
	"math"

	"minutegen/internal/domain"
	"minutegen/internal/engine"
)

const (
	// Window used when scoring candidate cut points for silence.
	energyWindowSec = 0.25
	// Cut points may shift up to this fraction of the chunk length to
	// land on a low-energy region.
	maxCutShiftFraction = 0.1
)

// Split cuts audio into chunks of chunkLength seconds where consecutive
// chunks overlap by overlapFraction*chunkLength. Cut points are snapped
// to the quietest nearby region when samples are available, so words are
// less likely to be severed; the overlap between consecutive chunks is
// preserved exactly because both sides of a cut shift together.
//
// Audio shorter than one chunk yields a single chunk covering it all.
func Split(audio engine.Audio, chunkLength, overlapFraction float64) ([]domain.AudioChunk, error) {
	if audio.DurationSec <= 0 {
		return nil, &domain.IngestionError{Reason: "audio has zero duration"}
	}
	if chunkLength <= 0 {
		return nil, fmt.Errorf("chunk length must be positive, got %v", chunkLength)
	}
	if overlapFraction < 0 || overlapFraction >= 1 {
		return nil, fmt.Errorf("overlap fraction must be in [0,1), got %v", overlapFraction)
	}

	duration := audio.DurationSec
	if duration <= chunkLength {
		return []domain.AudioChunk{{
			Index:    0,
			StartSec: 0,
			EndSec:   duration,
			Samples:  sliceSamples(audio, 0, duration),
		}}, nil
	}

	overlap := overlapFraction * chunkLength
	step := chunkLength - overlap

	// Cut points: chunk i spans [cut[i], cut[i+1]+overlap].
	lastCut := duration - overlap
	cuts := []float64{0}
	for pos := step; pos < lastCut; pos += step {
		cuts = append(cuts, snapToSilence(audio, pos, chunkLength, cuts[len(cuts)-1], lastCut))
	}
	cuts = append(cuts, lastCut)

	chunks := make([]domain.AudioChunk, 0, len(cuts)-1)
	for i := 0; i < len(cuts)-1; i++ {
		start := cuts[i]
		end := math.Min(cuts[i+1]+overlap, duration)
		chunks = append(chunks, domain.AudioChunk{
			Index:    i,
			StartSec: start,
			EndSec:   end,
			Samples:  sliceSamples(audio, start, end),
		})
	}

	return chunks, nil
}

// snapToSilence moves a nominal cut to the lowest-energy window within
// ±maxCutShiftFraction*chunkLength, never crossing the neighboring cuts.
func snapToSilence(audio engine.Audio, nominal, chunkLength, prevCut, maxCut float64) float64 {
	if len(audio.Samples) == 0 || audio.SampleRate <= 0 {
		return nominal
	}

	shift := maxCutShiftFraction * chunkLength
	lo := math.Max(nominal-shift, prevCut+energyWindowSec)
	hi := math.Min(nominal+shift, maxCut-energyWindowSec)
	if lo >= hi {
		return nominal
	}

	best := nominal
	bestEnergy := math.Inf(1)
	for pos := lo; pos <= hi; pos += energyWindowSec / 2 {
		e := windowEnergy(audio, pos)
		if e < bestEnergy {
			bestEnergy = e
			best = pos
		}
	}
	return best
}

// windowEnergy is the mean squared amplitude of the window starting at
// pos seconds.
func windowEnergy(audio engine.Audio, pos float64) float64 {
	start := int(pos * float64(audio.SampleRate))
	end := start + int(energyWindowSec*float64(audio.SampleRate))
	if start < 0 {
		start = 0
	}
	if end > len(audio.Samples) {
		end = len(audio.Samples)
	}
	if end <= start {
		return math.Inf(1)
	}

	sum := 0.0
	for _, s := range audio.Samples[start:end] {
		sum += s * s
	}
	return sum / float64(end-start)
}

func sliceSamples(audio engine.Audio, startSec, endSec float64) []float64 {
	if len(audio.Samples) == 0 || audio.SampleRate <= 0 {
		return nil
	}

	start := int(startSec * float64(audio.SampleRate))
	end := int(endSec * float64(audio.SampleRate))
	if start < 0 {
		start = 0
	}
	if end > len(audio.Samples) {
		end = len(audio.Samples)
	}
	if end <= start {
		return nil
	}
	return audio.Samples[start:end]
}

// Rehydrate restores chunk samples from freshly decoded audio using the
// persisted chunk boundaries; used when a job resumes mid-pipeline.
func Rehydrate(audio engine.Audio, chunks []domain.AudioChunk) []domain.AudioChunk {
	out := make([]domain.AudioChunk, len(chunks))
	for i, c := range chunks {
		c.Samples = sliceSamples(audio, c.StartSec, c.EndSec)
		out[i] = c
	}
	return out
}
