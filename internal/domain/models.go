package domain

// JobState is the lifecycle stage of a pipeline job. Transitions are
// one-directional; Failed is reachable from any non-terminal state.
type JobState string

const (
	StateQueued       JobState = "queued"
	StateChunking     JobState = "chunking"
	StateTranscribing JobState = "transcribing"
	StateSummarizing  JobState = "summarizing"
	StateEvaluating   JobState = "evaluating"
	StateCompleted    JobState = "completed"
	StateFailed       JobState = "failed"
)

func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Next returns the state that follows s in a successful run.
func (s JobState) Next() JobState {
	switch s {
	case StateQueued:
		return StateChunking
	case StateChunking:
		return StateTranscribing
	case StateTranscribing:
		return StateSummarizing
	case StateSummarizing:
		return StateEvaluating
	case StateEvaluating:
		return StateCompleted
	default:
		return s
	}
}

// AudioChunk is a time-bounded slice of the source audio. Samples hold
// mono PCM at the decoder's sample rate; they are not persisted and are
// re-sliced from the decoded audio when a job resumes.
type AudioChunk struct {
	Index    int       `json:"index"`
	StartSec float64   `json:"startSec"`
	EndSec   float64   `json:"endSec"`
	Samples  []float64 `json:"-"`
}

func (c AudioChunk) DurationSec() float64 {
	return c.EndSec - c.StartSec
}

// TranscriptSegment is one recognized span of speech with absolute timing.
type TranscriptSegment struct {
	ChunkIndex int     `json:"chunkIndex"`
	Text       string  `json:"text"`
	StartSec   float64 `json:"startSec"`
	EndSec     float64 `json:"endSec"`
	Confidence float64 `json:"confidence"`
}

func (s TranscriptSegment) DurationSec() float64 {
	return s.EndSec - s.StartSec
}

// Transcript is the ordered, stitched result of transcribing all chunks.
// Segment StartSec is strictly increasing after merging.
type Transcript struct {
	Segments []TranscriptSegment `json:"segments"`
	Text     string              `json:"text"`
}

// MeetingMetadata is supplied at submission and immutable afterwards.
type MeetingMetadata struct {
	Title           string   `json:"title"`
	Date            string   `json:"date"`
	Participants    []string `json:"participants"`
	ExpectedMinutes int      `json:"expectedMinutes,omitempty"`
}

type ActionItem struct {
	Text    string `json:"text"`
	Owner   string `json:"owner"`
	DueDate string `json:"dueDate,omitempty"`
}

// MinutesDocument is the structured extraction produced once per
// successful job. Degraded marks a best-effort fallback document built
// after schema validation retries were exhausted.
type MinutesDocument struct {
	Summary     string       `json:"summary"`
	Decisions   []string     `json:"decisions"`
	ActionItems []ActionItem `json:"actionItems"`
	NextSteps   []string     `json:"nextSteps"`
	Degraded    bool         `json:"degraded,omitempty"`
}

// References are optional ground-truth texts supplied at submission.
type References struct {
	Transcript string `json:"transcript,omitempty"`
	Summary    string `json:"summary,omitempty"`
}

// EvaluationReport carries accuracy scores. A nil field means the metric
// was not applicable because no reference was supplied; it is never
// reported as zero in that case.
type EvaluationReport struct {
	WER                *float64 `json:"wer,omitempty"`
	CER                *float64 `json:"cer,omitempty"`
	Accuracy           *float64 `json:"accuracy,omitempty"`
	BLEU               *float64 `json:"bleu,omitempty"`
	ROUGE1             *float64 `json:"rouge1,omitempty"`
	ROUGE2             *float64 `json:"rouge2,omitempty"`
	ROUGEL             *float64 `json:"rougeL,omitempty"`
	SemanticSimilarity *float64 `json:"semanticSimilarity,omitempty"`
}

// JobConfig is the per-job configuration snapshot, frozen at submission.
type JobConfig struct {
	Model           string   `json:"model"`
	ChunkLengthSec  float64  `json:"chunkLengthSec"`
	OverlapFraction float64  `json:"overlapFraction"`
	MaxSummaryWords int      `json:"maxSummaryWords"`
	OutputFormats   []string `json:"outputFormats"`
	MaxRetries      int      `json:"maxRetries"`
}

// StageProgress counts completed work units inside the current stage.
type StageProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// ArtifactRefs point at the durably persisted stage outputs.
type ArtifactRefs struct {
	ChunksPath     string `json:"chunksPath,omitempty"`
	TranscriptPath string `json:"transcriptPath,omitempty"`
	MinutesPath    string `json:"minutesPath,omitempty"`
	ReportPath     string `json:"reportPath,omitempty"`
}

// PipelineJob is the persisted record for one submission. Only the
// coordinator mutates it; workers report results through index-keyed
// slots that the coordinator merges.
type PipelineJob struct {
	ID         string                   `json:"id"`
	State      JobState                 `json:"state"`
	Cause      string                   `json:"cause,omitempty"`
	AudioPath  string                   `json:"audioPath"`
	Metadata   MeetingMetadata          `json:"metadata"`
	Config     JobConfig                `json:"config"`
	References References               `json:"references,omitempty"`
	Artifacts  ArtifactRefs             `json:"artifacts"`
	Progress   map[string]StageProgress `json:"progress,omitempty"`
	CreatedAt  int64                    `json:"createdAt"`
	UpdatedAt  int64                    `json:"updatedAt"`
}
