package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"minutegen/internal/config"
	"minutegen/internal/domain"
	"minutegen/internal/output"
	"minutegen/internal/pipeline"
	"minutegen/internal/storage"
)

var errOverlapRange = errors.New("overlap_fraction must be in [0,1)")

type API struct {
	cfg         config.Config
	files       *storage.FileManager
	coordinator *pipeline.Coordinator
	sign        signer

	// probe, when set, reads the container duration of an upload so the
	// job metadata can carry an expected meeting length.
	probe func(ctx context.Context, fileRef string) (float64, error)
}

func NewAPI(cfg config.Config, fm *storage.FileManager, coordinator *pipeline.Coordinator) *API {
	return &API{
		cfg:         cfg,
		files:       fm,
		coordinator: coordinator,
		sign:        signer{secret: cfg.ShareSecret, baseURL: cfg.BaseURL, ttl: cfg.ShareTTL},
	}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)

		apiGroup.POST("/jobs", api.handleSubmit)
		apiGroup.GET("/jobs", api.handleListJobs)
		apiGroup.GET("/jobs/:id", api.handleStatus)
		apiGroup.POST("/jobs/:id/cancel", api.handleCancel)
		apiGroup.GET("/jobs/:id/result", api.handleResult)
		apiGroup.GET("/jobs/:id/files/:format", api.handleDownload)
		apiGroup.POST("/jobs/:id/share", api.handleShare)
	}

	r.GET("/files/:id/:format", api.handleServeShared)
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) handleSubmit(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "missing recording file")
		return
	}

	upload, err := fileHeader.Open()
	if err != nil {
		log.Printf("error opening upload: %v", err)
		respondMessage(c, http.StatusInternalServerError, "unable to read uploaded file")
		return
	}
	defer upload.Close()

	audioPath, err := a.files.SaveUploadedRecording(upload, fileHeader.Filename)
	if err != nil {
		log.Printf("error saving uploaded recording: %v", err)
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	meta := domain.MeetingMetadata{
		Title:        strings.TrimSpace(c.PostForm("title")),
		Date:         strings.TrimSpace(c.PostForm("date")),
		Participants: splitLines(c.PostForm("participants")),
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(fileHeader.Filename, filepath.Ext(fileHeader.Filename))
	}
	if a.probe != nil {
		if dur, err := a.probe(c.Request.Context(), audioPath); err == nil && dur > 0 {
			meta.ExpectedMinutes = int(math.Ceil(dur / 60))
		}
	}

	refs := domain.References{
		Transcript: c.PostForm("reference_transcript"),
		Summary:    c.PostForm("reference_summary"),
	}

	jobCfg, err := parseJobConfig(c)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	job, err := a.coordinator.Submit(audioPath, meta, refs, jobCfg)
	if err != nil {
		log.Printf("job submit failed: %v", err)
		respondMessage(c, http.StatusInternalServerError, "unable to create job")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"jobId": job.ID, "state": job.State})
}

func (a *API) handleListJobs(c *gin.Context) {
	jobs := a.coordinator.ListJobs()
	summaries := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, gin.H{
			"jobId":     job.ID,
			"state":     job.State,
			"title":     job.Metadata.Title,
			"createdAt": job.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, summaries)
}

func (a *API) handleStatus(c *gin.Context) {
	job, err := a.coordinator.Status(c.Param("id"))
	if err != nil {
		respondMessage(c, http.StatusNotFound, "job not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobId":    job.ID,
		"state":    job.State,
		"cause":    job.Cause,
		"progress": job.Progress,
		"metadata": job.Metadata,
		"config":   job.Config,
		"artifacts": gin.H{
			"chunks":     job.Artifacts.ChunksPath != "",
			"transcript": job.Artifacts.TranscriptPath != "",
			"minutes":    job.Artifacts.MinutesPath != "",
			"report":     job.Artifacts.ReportPath != "",
		},
	})
}

func (a *API) handleCancel(c *gin.Context) {
	if err := a.coordinator.Cancel(c.Param("id")); err != nil {
		status := http.StatusConflict
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		respondError(c, status, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"cancelling": true})
}

func (a *API) handleResult(c *gin.Context) {
	jobID := c.Param("id")
	job, err := a.coordinator.Status(jobID)
	if err != nil {
		respondMessage(c, http.StatusNotFound, "job not found")
		return
	}

	minutes, report, err := a.coordinator.Result(jobID)
	if err != nil {
		status := http.StatusConflict
		if job.State == domain.StateFailed {
			status = http.StatusGone
		}
		respondError(c, status, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"minutes": minutes, "report": report})
}

func (a *API) handleDownload(c *gin.Context) {
	jobID := c.Param("id")
	format := strings.ToLower(c.Param("format"))

	job, err := a.coordinator.Status(jobID)
	if err != nil {
		respondMessage(c, http.StatusNotFound, "job not found")
		return
	}
	if job.State != domain.StateCompleted {
		respondMessage(c, http.StatusConflict, "job has no rendered output yet")
		return
	}

	a.serveRendered(c, jobID, format)
}

func (a *API) handleShare(c *gin.Context) {
	jobID := c.Param("id")
	format := strings.ToLower(c.DefaultQuery("format", "pdf"))

	job, err := a.coordinator.Status(jobID)
	if err != nil {
		respondMessage(c, http.StatusNotFound, "job not found")
		return
	}
	if job.State != domain.StateCompleted {
		respondMessage(c, http.StatusConflict, "job is not completed")
		return
	}
	if !formatEnabled(job.Config.OutputFormats, format) {
		respondMessage(c, http.StatusBadRequest, "format not rendered for this job")
		return
	}

	url, expiresAt := a.sign.Generate(jobID, format)
	c.JSON(http.StatusOK, gin.H{"url": url, "expiresAt": expiresAt.UTC()})
}

func (a *API) handleServeShared(c *gin.Context) {
	jobID := c.Param("id")
	format := strings.ToLower(c.Param("format"))
	expiresParam := c.Query("exp")
	signature := c.Query("sig")

	if expiresParam == "" || signature == "" {
		respondMessage(c, http.StatusBadRequest, "missing signature")
		return
	}

	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid expiration")
		return
	}
	if expires < time.Now().Unix() {
		respondMessage(c, http.StatusGone, "link expired")
		return
	}
	if !a.sign.Validate(c.Request.URL.Path, expires, signature) {
		respondMessage(c, http.StatusForbidden, "invalid signature")
		return
	}

	a.serveRendered(c, jobID, format)
}

func (a *API) serveRendered(c *gin.Context, jobID, format string) {
	path := a.files.RenderPath(jobID, format)
	if _, err := os.Stat(path); err != nil {
		respondMessage(c, http.StatusNotFound, "rendered output not found")
		return
	}

	c.Header("Content-Type", output.MIMEType(format))
	c.File(path)
}

func parseJobConfig(c *gin.Context) (domain.JobConfig, error) {
	jobCfg := domain.JobConfig{
		Model: strings.TrimSpace(c.PostForm("model")),
		// -1 marks "not supplied" so a client asking for zero overlap is
		// not silently given the server default.
		OverlapFraction: -1,
		OutputFormats:   splitCSV(c.PostForm("output_formats")),
	}
	for _, format := range jobCfg.OutputFormats {
		if !output.Supported(format) {
			return domain.JobConfig{}, fmt.Errorf("unknown output format %q", format)
		}
	}

	var err error
	if v := c.PostForm("chunk_length"); v != "" {
		if jobCfg.ChunkLengthSec, err = strconv.ParseFloat(v, 64); err != nil {
			return domain.JobConfig{}, err
		}
	}
	if v := c.PostForm("overlap_fraction"); v != "" {
		if jobCfg.OverlapFraction, err = strconv.ParseFloat(v, 64); err != nil {
			return domain.JobConfig{}, err
		}
		if jobCfg.OverlapFraction < 0 || jobCfg.OverlapFraction >= 1 {
			return domain.JobConfig{}, errOverlapRange
		}
	}
	if v := c.PostForm("max_summary_words"); v != "" {
		if jobCfg.MaxSummaryWords, err = strconv.Atoi(v); err != nil {
			return domain.JobConfig{}, err
		}
	}
	if v := c.PostForm("max_retries"); v != "" {
		if jobCfg.MaxRetries, err = strconv.Atoi(v); err != nil {
			return domain.JobConfig{}, err
		}
	}
	return jobCfg, nil
}

func formatEnabled(formats []string, format string) bool {
	for _, f := range formats {
		if f == format {
			return true
		}
	}
	return false
}

func splitLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func respondError(c *gin.Context, status int, err error) {
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
