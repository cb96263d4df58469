// Package metrics computes accuracy scores for a finished job against
// optional reference texts. All functions are pure except semantic
// similarity, which delegates embedding to the injected engine.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// WER is the word error rate: word-level edit distance over the number
// of reference words.
func WER(reference, hypothesis string) float64 {
	ref := tokenize(reference)
	hyp := tokenize(hypothesis)

	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0
		}
		return 1
	}
	return float64(editDistance(ref, hyp)) / float64(len(ref))
}

// CER is the character error rate over the reference characters,
// whitespace-normalized and case-folded like WER.
func CER(reference, hypothesis string) float64 {
	ref := strings.Split(normalize(reference), "")
	hyp := strings.Split(normalize(hypothesis), "")

	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0
		}
		return 1
	}
	return float64(editDistance(ref, hyp)) / float64(len(ref))
}

// BLEU is the standard BLEU-4: geometric mean of clipped n-gram
// precisions for n=1..4 with a brevity penalty.
func BLEU(reference, hypothesis string) float64 {
	ref := tokenize(reference)
	hyp := tokenize(hypothesis)
	if len(hyp) == 0 {
		return 0
	}

	const maxN = 4
	logSum := 0.0
	for n := 1; n <= maxN; n++ {
		p := clippedPrecision(ref, hyp, n)
		if p == 0 {
			return 0
		}
		logSum += math.Log(p)
	}

	bp := 1.0
	if len(hyp) < len(ref) {
		bp = math.Exp(1 - float64(len(ref))/float64(len(hyp)))
	}

	return bp * math.Exp(logSum/maxN)
}

// RougeScore bundles the three standard ROUGE components.
type RougeScore struct {
	Precision float64
	Recall    float64
	F1        float64
}

// RougeN scores n-gram overlap between reference and hypothesis.
func RougeN(reference, hypothesis string, n int) RougeScore {
	ref := countNgrams(tokenize(reference), n)
	hyp := countNgrams(tokenize(hypothesis), n)

	overlap := 0
	refTotal := 0
	hypTotal := 0
	for _, c := range ref {
		refTotal += c
	}
	for _, c := range hyp {
		hypTotal += c
	}
	for gram, c := range hyp {
		if rc, ok := ref[gram]; ok {
			overlap += minInt(c, rc)
		}
	}

	return score(overlap, refTotal, hypTotal)
}

// RougeL scores the longest common subsequence of words.
func RougeL(reference, hypothesis string) RougeScore {
	ref := tokenize(reference)
	hyp := tokenize(hypothesis)
	lcs := lcsLength(ref, hyp)
	return score(lcs, len(ref), len(hyp))
}

// Embedder is the capability needed for semantic similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SemanticSimilarity is the cosine similarity between embedding vectors
// of the two texts.
func SemanticSimilarity(ctx context.Context, embedder Embedder, reference, hypothesis string) (float64, error) {
	if embedder == nil {
		return 0, errors.New("no embedding engine available")
	}

	a, err := embedder.Embed(ctx, reference)
	if err != nil {
		return 0, fmt.Errorf("embed reference: %w", err)
	}
	b, err := embedder.Embed(ctx, hypothesis)
	if err != nil {
		return 0, fmt.Errorf("embed hypothesis: %w", err)
	}

	return cosineSimilarity(a, b)
}

// cosineSimilarity requires non-empty, equal-length, non-zero vectors.
func cosineSimilarity(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, errors.New("cosine similarity requires non-empty vectors")
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine similarity requires equal dimensions, got %d and %d", len(a), len(b))
	}

	dot := 0.0
	aNorm := 0.0
	bNorm := 0.0
	for i := range a {
		dot += a[i] * b[i]
		aNorm += a[i] * a[i]
		bNorm += b[i] * b[i]
	}
	if aNorm == 0 || bNorm == 0 {
		return 0, errors.New("cosine similarity is undefined for zero vectors")
	}

	return dot / (math.Sqrt(aNorm) * math.Sqrt(bNorm)), nil
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func normalize(text string) string {
	return strings.Join(tokenize(text), " ")
}

func editDistance(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = minInt(minInt(prev[j]+1, cur[j-1]+1), prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func clippedPrecision(ref, hyp []string, n int) float64 {
	hypGrams := countNgrams(hyp, n)
	if len(hypGrams) == 0 {
		return 0
	}
	refGrams := countNgrams(ref, n)

	matched := 0
	total := 0
	for gram, c := range hypGrams {
		total += c
		if rc, ok := refGrams[gram]; ok {
			matched += minInt(c, rc)
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

func countNgrams(words []string, n int) map[string]int {
	grams := map[string]int{}
	for i := 0; i+n <= len(words); i++ {
		grams[strings.Join(words[i:i+n], " ")]++
	}
	return grams
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

func score(overlap, refTotal, hypTotal int) RougeScore {
	s := RougeScore{}
	if refTotal > 0 {
		s.Recall = float64(overlap) / float64(refTotal)
	}
	if hypTotal > 0 {
		s.Precision = float64(overlap) / float64(hypTotal)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
