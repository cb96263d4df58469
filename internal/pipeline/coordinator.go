// Package pipeline sequences chunking, transcription, summarization,
// and evaluation for each job, owning lifecycle, checkpoints, retries,
// and cancellation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"minutegen/internal/chunker"
	"minutegen/internal/config"
	"minutegen/internal/domain"
	"minutegen/internal/engine"
	"minutegen/internal/metrics"
	"minutegen/internal/output"
	"minutegen/internal/storage"
	"minutegen/internal/summarize"
	"minutegen/internal/transcribe"
)

const (
	artifactChunks     = "chunks"
	artifactTranscript = "transcript"
	artifactMinutes    = "minutes"
	artifactReport     = "report"
)

// Coordinator is the single writer of job records. Stage workers report
// into index-keyed slots inside the orchestrators; the coordinator only
// sees their deterministic merged results.
type Coordinator struct {
	cfg      config.Config
	store    *storage.Store
	files    *storage.FileManager
	decoder  engine.AudioDecoder
	asr      engine.ASREngine
	llm      engine.LLMEngine
	embedder engine.EmbeddingEngine

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
	progress map[string]map[string]domain.StageProgress
	wg       sync.WaitGroup
}

func New(cfg config.Config, store *storage.Store, files *storage.FileManager, decoder engine.AudioDecoder, asr engine.ASREngine, llm engine.LLMEngine, embedder engine.EmbeddingEngine) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		store:    store,
		files:    files,
		decoder:  decoder,
		asr:      asr,
		llm:      llm,
		embedder: embedder,
		cancels:  map[string]context.CancelFunc{},
		progress: map[string]map[string]domain.StageProgress{},
	}
}

// Submit registers a new job for an uploaded recording and starts
// processing it in the background.
func (c *Coordinator) Submit(audioPath string, meta domain.MeetingMetadata, refs domain.References, jobCfg domain.JobConfig) (domain.PipelineJob, error) {
	c.applyDefaults(&jobCfg)

	job, err := c.store.CreateJob(domain.PipelineJob{
		State:      domain.StateQueued,
		AudioPath:  audioPath,
		Metadata:   meta,
		Config:     jobCfg,
		References: refs,
		Progress:   map[string]domain.StageProgress{},
	})
	if err != nil {
		return domain.PipelineJob{}, fmt.Errorf("create job: %w", err)
	}

	c.start(job)
	return job, nil
}

// Resume restarts every non-terminal job at its first incomplete stage.
// Called once after process startup.
func (c *Coordinator) Resume() {
	for _, job := range c.store.PendingJobs() {
		log.Printf("resuming job %s from stage %s", job.ID, job.State)
		c.start(job)
	}
}

// Status returns the current job record with live in-stage progress
// overlaid on the persisted per-stage counts.
func (c *Coordinator) Status(jobID string) (domain.PipelineJob, error) {
	job, err := c.store.GetJob(jobID)
	if err != nil {
		return domain.PipelineJob{}, err
	}

	c.mu.Lock()
	live := c.progress[jobID]
	if len(live) > 0 {
		merged := map[string]domain.StageProgress{}
		for k, v := range job.Progress {
			merged[k] = v
		}
		for k, v := range live {
			merged[k] = v
		}
		job.Progress = merged
	}
	c.mu.Unlock()

	return job, nil
}

// ListJobs returns all known jobs, newest first.
func (c *Coordinator) ListJobs() []domain.PipelineJob {
	return c.store.ListJobs()
}

// Cancel stops a running job. The job moves to Failed with cause
// Cancelled; artifacts already produced are retained.
func (c *Coordinator) Cancel(jobID string) error {
	job, err := c.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return fmt.Errorf("job %s already %s", jobID, job.State)
	}

	c.mu.Lock()
	cancel, running := c.cancels[jobID]
	c.mu.Unlock()

	if running {
		cancel()
		return nil
	}

	// Not currently executing (e.g. recorded before a restart and not
	// yet resumed): fail it directly.
	c.fail(job, domain.ErrCancelled)
	return nil
}

// Result returns the final artifacts of a completed job.
func (c *Coordinator) Result(jobID string) (domain.MinutesDocument, domain.EvaluationReport, error) {
	job, err := c.store.GetJob(jobID)
	if err != nil {
		return domain.MinutesDocument{}, domain.EvaluationReport{}, err
	}

	switch job.State {
	case domain.StateCompleted:
	case domain.StateFailed:
		return domain.MinutesDocument{}, domain.EvaluationReport{}, fmt.Errorf("job %s failed: %s", jobID, job.Cause)
	default:
		return domain.MinutesDocument{}, domain.EvaluationReport{}, fmt.Errorf("job %s still %s", jobID, job.State)
	}

	var minutes domain.MinutesDocument
	if err := c.files.LoadArtifact(job.Artifacts.MinutesPath, &minutes); err != nil {
		return domain.MinutesDocument{}, domain.EvaluationReport{}, err
	}
	var report domain.EvaluationReport
	if err := c.files.LoadArtifact(job.Artifacts.ReportPath, &report); err != nil {
		return domain.MinutesDocument{}, domain.EvaluationReport{}, err
	}
	return minutes, report, nil
}

// Wait blocks until all running jobs have finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// StartRetentionSweep deletes terminal jobs past the retention window.
func (c *Coordinator) StartRetentionSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, job := range c.store.ExpiredJobs(c.cfg.Retention) {
					log.Printf("retention: removing job %s", job.ID)
					c.files.RemoveJobFiles(job.ID, job.AudioPath, job.Config.OutputFormats)
					if err := c.store.DeleteJob(job.ID); err != nil {
						log.Printf("retention: delete job %s: %v", job.ID, err)
					}
				}
			}
		}
	}()
}

func (c *Coordinator) start(job domain.PipelineJob) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.cancels[job.ID] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			cancel()
			c.mu.Lock()
			delete(c.cancels, job.ID)
			delete(c.progress, job.ID)
			c.mu.Unlock()
		}()
		c.run(ctx, job)
	}()
}

// run drives the state machine. The state names the stage currently in
// progress; each stage persists its output and then the transition, so
// a restart resumes at the first incomplete stage.
func (c *Coordinator) run(ctx context.Context, job domain.PipelineJob) {
	// Stage outputs carried between stages within one process; reloaded
	// from artifacts when absent (resume path).
	var chunks []domain.AudioChunk
	var transcript *domain.Transcript
	var minutes *domain.MinutesDocument

	if job.Progress == nil {
		job.Progress = map[string]domain.StageProgress{}
	}

	for !job.State.Terminal() {
		// Cancellation is checked at every stage boundary.
		if ctx.Err() != nil {
			c.fail(job, domain.ErrCancelled)
			return
		}

		var err error
		switch job.State {
		case domain.StateQueued:
			// Nothing to do; the transition below enters Chunking.

		case domain.StateChunking:
			chunks, err = c.runChunking(ctx, &job)

		case domain.StateTranscribing:
			if chunks == nil {
				chunks, err = c.rehydrateChunks(ctx, job)
			}
			if err == nil {
				transcript, err = c.runTranscription(ctx, &job, chunks)
			}

		case domain.StateSummarizing:
			if transcript == nil {
				transcript = &domain.Transcript{}
				err = c.files.LoadArtifact(job.Artifacts.TranscriptPath, transcript)
			}
			if err == nil {
				minutes, err = c.runSummarization(ctx, &job, *transcript)
			}

		case domain.StateEvaluating:
			if transcript == nil {
				transcript = &domain.Transcript{}
				err = c.files.LoadArtifact(job.Artifacts.TranscriptPath, transcript)
			}
			if err == nil && minutes == nil {
				minutes = &domain.MinutesDocument{}
				err = c.files.LoadArtifact(job.Artifacts.MinutesPath, minutes)
			}
			if err == nil {
				err = c.runEvaluation(ctx, &job, *transcript, *minutes)
			}

		default:
			err = &domain.PipelineFatalError{Stage: job.State, Reason: "unknown stage"}
		}

		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.fail(job, domain.ErrCancelled)
			} else {
				c.fail(job, err)
			}
			return
		}

		job.State = job.State.Next()
		updated, uerr := c.store.UpdateJob(job)
		if uerr != nil {
			log.Printf("job %s: persist transition: %v", job.ID, uerr)
			return
		}
		job = updated
	}

	log.Printf("job %s completed", job.ID)
}

func (c *Coordinator) runChunking(ctx context.Context, job *domain.PipelineJob) ([]domain.AudioChunk, error) {
	audio, err := c.decoder.Load(ctx, job.AudioPath)
	if err != nil {
		return nil, err
	}

	chunks, err := chunker.Split(audio, job.Config.ChunkLengthSec, job.Config.OverlapFraction)
	if err != nil {
		return nil, err
	}

	path, err := c.files.SaveArtifact(job.ID, artifactChunks, chunks)
	if err != nil {
		return nil, err
	}
	job.Artifacts.ChunksPath = path
	job.Progress[string(domain.StateChunking)] = domain.StageProgress{Done: len(chunks), Total: len(chunks)}
	return chunks, nil
}

// rehydrateChunks restores chunk samples after a restart by re-decoding
// the source and re-slicing along the persisted boundaries.
func (c *Coordinator) rehydrateChunks(ctx context.Context, job domain.PipelineJob) ([]domain.AudioChunk, error) {
	var chunks []domain.AudioChunk
	if err := c.files.LoadArtifact(job.Artifacts.ChunksPath, &chunks); err != nil {
		return nil, err
	}

	audio, err := c.decoder.Load(ctx, job.AudioPath)
	if err != nil {
		return nil, err
	}
	return chunker.Rehydrate(audio, chunks), nil
}

func (c *Coordinator) runTranscription(ctx context.Context, job *domain.PipelineJob, chunks []domain.AudioChunk) (*domain.Transcript, error) {
	orch := transcribe.New(c.asr, c.cfg.ASRConcurrency, c.retryPolicy(job.Config.MaxRetries))
	orch.OnProgress = c.progressFn(job.ID, domain.StateTranscribing)

	transcript, err := orch.Transcribe(ctx, chunks)
	if err != nil {
		return nil, err
	}

	path, err := c.files.SaveArtifact(job.ID, artifactTranscript, transcript)
	if err != nil {
		return nil, err
	}
	job.Artifacts.TranscriptPath = path
	job.Progress[string(domain.StateTranscribing)] = domain.StageProgress{Done: len(chunks), Total: len(chunks)}
	return &transcript, nil
}

func (c *Coordinator) runSummarization(ctx context.Context, job *domain.PipelineJob, transcript domain.Transcript) (*domain.MinutesDocument, error) {
	orch := summarize.New(c.llm, c.cfg.LLMConcurrency, c.retryPolicy(job.Config.MaxRetries))
	orch.OnProgress = c.progressFn(job.ID, domain.StateSummarizing)

	minutes, err := orch.Summarize(ctx, transcript, job.Metadata, job.Config)
	if err != nil {
		return nil, err
	}

	path, err := c.files.SaveArtifact(job.ID, artifactMinutes, minutes)
	if err != nil {
		return nil, err
	}
	job.Artifacts.MinutesPath = path
	job.Progress[string(domain.StateSummarizing)] = domain.StageProgress{Done: 1, Total: 1}
	return &minutes, nil
}

func (c *Coordinator) runEvaluation(ctx context.Context, job *domain.PipelineJob, transcript domain.Transcript, minutes domain.MinutesDocument) error {
	report := metrics.Evaluate(ctx, c.embedder, transcript, minutes, job.References)

	path, err := c.files.SaveArtifact(job.ID, artifactReport, report)
	if err != nil {
		return err
	}
	job.Artifacts.ReportPath = path

	doc := output.Document{
		Metadata: job.Metadata,
		Minutes:  minutes,
		Report:   report,
		Duration: output.EstimateDuration(transcript.Text),
	}
	for _, format := range job.Config.OutputFormats {
		data, err := output.Render(format, doc)
		if err != nil {
			return fmt.Errorf("render %s: %w", format, err)
		}
		if _, err := c.files.SaveRendered(job.ID, format, data); err != nil {
			return err
		}
	}
	return nil
}

// fail records a terminal failure; artifacts already produced remain.
func (c *Coordinator) fail(job domain.PipelineJob, cause error) {
	job.State = domain.StateFailed
	if errors.Is(cause, domain.ErrCancelled) {
		job.Cause = domain.ErrCancelled.Error()
	} else {
		job.Cause = cause.Error()
	}
	if _, err := c.store.UpdateJob(job); err != nil {
		log.Printf("job %s: persist failure: %v", job.ID, err)
		return
	}
	log.Printf("job %s failed: %s", job.ID, job.Cause)
}

// progressFn records live in-stage progress in memory; the persisted
// record only carries completed-stage counts, keeping the coordinator
// the sole writer of job state.
func (c *Coordinator) progressFn(jobID string, stage domain.JobState) func(done, total int) {
	return func(done, total int) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.progress[jobID] == nil {
			c.progress[jobID] = map[string]domain.StageProgress{}
		}
		c.progress[jobID][string(stage)] = domain.StageProgress{Done: done, Total: total}
	}
}

func (c *Coordinator) applyDefaults(jobCfg *domain.JobConfig) {
	if jobCfg.Model == "" {
		jobCfg.Model = c.cfg.Model
	}
	if jobCfg.ChunkLengthSec <= 0 {
		jobCfg.ChunkLengthSec = c.cfg.ChunkLengthSec
	}
	// A negative overlap means the client did not supply one; zero is a
	// valid explicit choice of non-overlapping chunks.
	if jobCfg.OverlapFraction < 0 {
		jobCfg.OverlapFraction = c.cfg.OverlapFraction
	}
	if jobCfg.MaxSummaryWords <= 0 {
		jobCfg.MaxSummaryWords = c.cfg.MaxSummaryWords
	}
	if len(jobCfg.OutputFormats) == 0 {
		jobCfg.OutputFormats = c.cfg.OutputFormats
	}
	if jobCfg.MaxRetries <= 0 {
		jobCfg.MaxRetries = c.cfg.MaxRetries
	}
}

func (c *Coordinator) retryPolicy(maxRetries int) engine.RetryPolicy {
	policy := engine.DefaultRetryPolicy()
	policy.MaxAttempts = maxRetries
	if c.cfg.RetryBaseDelay > 0 {
		policy.BaseDelay = c.cfg.RetryBaseDelay
	}
	if c.cfg.CallTimeout > 0 {
		policy.CallTimeout = c.cfg.CallTimeout
	}
	return policy
}
