package transcribe

import (
	"math"
	"sort"
	"strings"

	"minutegen/internal/domain"
)

// Fraction of the shorter overlap word sequence that must appear in the
// longest common subsequence before the two sides are treated as the
// same speech transcribed twice.
const duplicateLCSRatio = 0.5

// Merge flattens per-chunk segment slots into one transcript ordered by
// time. Where two chunks transcribed the same overlap window, the tail
// of the earlier segment and the head of the later one are reconciled by
// word-level LCS, keeping the higher-confidence side for divergent
// tokens. Merging an already-merged, non-overlapping sequence returns it
// unchanged.
func Merge(slots [][]domain.TranscriptSegment) domain.Transcript {
	var all []domain.TranscriptSegment
	for _, slot := range slots {
		all = append(all, slot...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].StartSec != all[j].StartSec {
			return all[i].StartSec < all[j].StartSec
		}
		return all[i].ChunkIndex < all[j].ChunkIndex
	})

	merged := make([]domain.TranscriptSegment, 0, len(all))
	for _, seg := range all {
		if len(merged) == 0 {
			merged = append(merged, seg)
			continue
		}

		last := &merged[len(merged)-1]

		// Strictly increasing start timestamps.
		if seg.StartSec <= last.StartSec {
			seg.StartSec = last.StartSec + 0.001
			if seg.EndSec < seg.StartSec {
				seg.EndSec = seg.StartSec
			}
		}

		if seg.StartSec >= last.EndSec {
			merged = append(merged, seg)
			continue
		}

		if keep := reconcile(last, &seg); keep {
			merged = append(merged, seg)
		}
	}

	return domain.Transcript{
		Segments: merged,
		Text:     joinSegments(merged),
	}
}

// reconcile resolves the shared time window between the earlier segment
// a and the later, overlapping segment b. It may rewrite both texts and
// b's start. The return value reports whether b should be kept.
func reconcile(a, b *domain.TranscriptSegment) bool {
	overlapEnd := math.Min(a.EndSec, b.EndSec)

	// b fully contained in a's window: a duplicate sub-transcription.
	if b.EndSec <= a.EndSec {
		return false
	}

	aWords := strings.Fields(a.Text)
	bWords := strings.Fields(b.Text)

	aTailCount := overlapWordCount(len(aWords), a.DurationSec(), overlapEnd-b.StartSec)
	bHeadCount := overlapWordCount(len(bWords), b.DurationSec(), overlapEnd-b.StartSec)

	aTail := aWords[len(aWords)-aTailCount:]
	bHead := bWords[:bHeadCount]

	shorter := min(len(aTail), len(bHead))
	if shorter == 0 || float64(lcsLength(aTail, bHead)) < duplicateLCSRatio*float64(shorter) {
		// The overlap window holds different speech on each side, not a
		// double transcription; keep both texts untouched.
		return true
	}

	// Same speech twice: the higher-confidence side wins the window.
	window := aTail
	if b.Confidence > a.Confidence {
		window = bHead
	}

	a.Text = strings.TrimSpace(strings.Join(append(aWords[:len(aWords)-aTailCount], window...), " "))
	b.Text = strings.TrimSpace(strings.Join(bWords[bHeadCount:], " "))
	b.StartSec = overlapEnd
	if b.StartSec <= a.StartSec {
		b.StartSec = a.StartSec + 0.001
	}
	if b.EndSec < b.StartSec {
		b.EndSec = b.StartSec
	}

	if b.Text == "" {
		if b.EndSec > a.EndSec {
			a.EndSec = b.EndSec
		}
		return false
	}
	return true
}

// overlapWordCount estimates how many of a segment's words fall inside
// the overlap window, proportional to duration. Segments carry no
// per-word timing, so this is the stitching heuristic.
func overlapWordCount(words int, segDur, overlapDur float64) int {
	if words == 0 || segDur <= 0 {
		return 0
	}
	n := int(math.Round(float64(words) * overlapDur / segDur))
	if n < 0 {
		n = 0
	}
	if n > words {
		n = words
	}
	return n
}

func lcsLength(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func joinSegments(segments []domain.TranscriptSegment) string {
	var parts []string
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
