package domain

import "testing"

func TestJobStateNext(t *testing.T) {
	order := []JobState{
		StateQueued,
		StateChunking,
		StateTranscribing,
		StateSummarizing,
		StateEvaluating,
		StateCompleted,
	}

	for i := 0; i < len(order)-1; i++ {
		if got := order[i].Next(); got != order[i+1] {
			t.Fatalf("%s.Next() = %s, want %s", order[i], got, order[i+1])
		}
	}

	// Terminal states do not advance.
	if got := StateCompleted.Next(); got != StateCompleted {
		t.Fatalf("completed advanced to %s", got)
	}
	if got := StateFailed.Next(); got != StateFailed {
		t.Fatalf("failed advanced to %s", got)
	}
}

func TestDurationSec(t *testing.T) {
	chunk := AudioChunk{StartSec: 30, EndSec: 62.5}
	if got := chunk.DurationSec(); got != 32.5 {
		t.Fatalf("chunk duration = %v, want 32.5", got)
	}

	seg := TranscriptSegment{StartSec: 12.5, EndSec: 20}
	if got := seg.DurationSec(); got != 7.5 {
		t.Fatalf("segment duration = %v, want 7.5", got)
	}
}

func TestJobStateTerminal(t *testing.T) {
	for _, s := range []JobState{StateQueued, StateChunking, StateTranscribing, StateSummarizing, StateEvaluating} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
	for _, s := range []JobState{StateCompleted, StateFailed} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}
