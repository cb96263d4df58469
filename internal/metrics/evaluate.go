package metrics

import (
	"context"
	"log"

	"minutegen/internal/domain"
)

// Evaluate builds the report for a finished job. Metrics whose reference
// is absent stay nil in the report: not applicable, never zero.
func Evaluate(ctx context.Context, embedder Embedder, transcript domain.Transcript, minutes domain.MinutesDocument, refs domain.References) domain.EvaluationReport {
	report := domain.EvaluationReport{}

	if refs.Transcript != "" {
		wer := WER(refs.Transcript, transcript.Text)
		cer := CER(refs.Transcript, transcript.Text)
		accuracy := 1 - wer
		if accuracy < 0 {
			accuracy = 0
		}
		bleu := BLEU(refs.Transcript, transcript.Text)

		report.WER = &wer
		report.CER = &cer
		report.Accuracy = &accuracy
		report.BLEU = &bleu
	}

	if refs.Summary != "" {
		r1 := RougeN(refs.Summary, minutes.Summary, 1).F1
		r2 := RougeN(refs.Summary, minutes.Summary, 2).F1
		rl := RougeL(refs.Summary, minutes.Summary).F1
		report.ROUGE1 = &r1
		report.ROUGE2 = &r2
		report.ROUGEL = &rl

		sim, err := SemanticSimilarity(ctx, embedder, refs.Summary, minutes.Summary)
		if err != nil {
			// Embedding is an external call; its loss leaves the field
			// not-applicable rather than failing the stage.
			log.Printf("metrics: semantic similarity unavailable: %v", err)
		} else {
			report.SemanticSimilarity = &sim
		}
	}

	return report
}
