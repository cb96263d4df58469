package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"minutegen/internal/domain"
)

type metaData struct {
	Jobs map[string]domain.PipelineJob `json:"jobs"`
}

// Store persists one record per job in a single JSON file, rewritten
// atomically on every mutation.
type Store struct {
	mu   sync.RWMutex
	path string
	data metaData
}

func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store := &Store{path: filepath.Join(baseDir, "jobs.json")}
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = metaData{Jobs: map[string]domain.PipelineJob{}}

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("open jobs file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			return s.saveLocked()
		}
		return fmt.Errorf("decode jobs file: %w", err)
	}

	if s.data.Jobs == nil {
		s.data.Jobs = map[string]domain.PipelineJob{}
	}
	return nil
}

func (s *Store) CreateJob(job domain.PipelineJob) (domain.PipelineJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.State == "" {
		job.State = domain.StateQueued
	}
	now := time.Now().Unix()
	if job.CreatedAt == 0 {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	s.data.Jobs[job.ID] = job

	if err := s.saveLocked(); err != nil {
		return domain.PipelineJob{}, err
	}
	return job, nil
}

func (s *Store) GetJob(id string) (domain.PipelineJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.data.Jobs[id]
	if !ok {
		return domain.PipelineJob{}, fmt.Errorf("job %s not found", id)
	}
	return job, nil
}

func (s *Store) UpdateJob(job domain.PipelineJob) (domain.PipelineJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data.Jobs[job.ID]
	if !ok {
		return domain.PipelineJob{}, fmt.Errorf("job %s not found", job.ID)
	}

	if job.CreatedAt == 0 {
		job.CreatedAt = existing.CreatedAt
	}
	job.UpdatedAt = time.Now().Unix()
	s.data.Jobs[job.ID] = job

	if err := s.saveLocked(); err != nil {
		return domain.PipelineJob{}, err
	}
	return job, nil
}

// ListJobs returns all jobs, newest first.
func (s *Store) ListJobs() []domain.PipelineJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]domain.PipelineJob, 0, len(s.data.Jobs))
	for _, job := range s.data.Jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt != jobs[j].CreatedAt {
			return jobs[i].CreatedAt > jobs[j].CreatedAt
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

// PendingJobs returns jobs in a non-terminal state, oldest first; used
// to resume work after a process restart.
func (s *Store) PendingJobs() []domain.PipelineJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []domain.PipelineJob
	for _, job := range s.data.Jobs {
		if !job.State.Terminal() {
			jobs = append(jobs, job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt != jobs[j].CreatedAt {
			return jobs[i].CreatedAt < jobs[j].CreatedAt
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

// ExpiredJobs returns terminal jobs whose retention window has passed.
func (s *Store) ExpiredJobs(retention time.Duration) []domain.PipelineJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-retention).Unix()
	var jobs []domain.PipelineJob
	for _, job := range s.data.Jobs {
		if job.State.Terminal() && job.UpdatedAt < cutoff {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func (s *Store) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Jobs[id]; !ok {
		return fmt.Errorf("job %s not found", id)
	}
	delete(s.data.Jobs, id)
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "jobs-*.json")
	if err != nil {
		return fmt.Errorf("create temp jobs file: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode jobs: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp jobs file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace jobs file: %w", err)
	}

	return nil
}
