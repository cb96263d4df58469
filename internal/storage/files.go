package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileManager owns the on-disk layout: uploaded recordings, per-job
// stage artifacts, and rendered output files.
type FileManager struct {
	baseDir        string
	audioDir       string
	artifactDir    string
	renderDir      string
	maxUploadBytes int64
}

var supportedUploadExts = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".mkv":  {},
	".m4a":  {},
	".webm": {},
}

var mimeExtensionFallback = map[string]string{
	"audio/mpeg":       ".mp3",
	"audio/mp3":        ".mp3",
	"audio/mp4":        ".m4a",
	"audio/x-m4a":      ".m4a",
	"audio/wav":        ".wav",
	"audio/x-wav":      ".wav",
	"audio/webm":       ".webm",
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/x-matroska": ".mkv",
}

func NewFileManager(baseDir string, maxUploadBytes int64) (*FileManager, error) {
	fm := &FileManager{
		baseDir:        baseDir,
		audioDir:       filepath.Join(baseDir, "audio"),
		artifactDir:    filepath.Join(baseDir, "artifacts"),
		renderDir:      filepath.Join(baseDir, "rendered"),
		maxUploadBytes: maxUploadBytes,
	}

	dirs := []string{fm.baseDir, fm.audioDir, fm.artifactDir, fm.renderDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	return fm, nil
}

// SaveUploadedRecording streams an upload to disk under a fresh ID,
// enforcing the size limit and the supported container formats.
func (fm *FileManager) SaveUploadedRecording(file multipart.File, filename string) (string, error) {
	sample := make([]byte, 512)
	n, err := file.Read(sample)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read upload sample: %w", err)
	}
	sample = sample[:n]

	ext := normalizeExtension(filename)
	if ext == "" {
		contentType := strings.ToLower(http.DetectContentType(sample))
		ext = fallbackExtension(contentType)
	}
	if _, ok := supportedUploadExts[ext]; !ok {
		return "", fmt.Errorf("unsupported recording format %q", ext)
	}

	id := uuid.NewString()
	path := filepath.Join(fm.audioDir, id+ext)

	if err := fm.writeWithLimit(path, sample, file); err != nil {
		return "", err
	}
	return path, nil
}

// SaveArtifact writes a stage output as indented JSON under the job's
// artifact directory and returns its path. The write is atomic so a
// checkpoint is either fully present or absent.
func (fm *FileManager) SaveArtifact(jobID, name string, v any) (string, error) {
	dir := filepath.Join(fm.artifactDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, name+"-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("encode artifact %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp artifact: %w", err)
	}

	path := filepath.Join(dir, name+".json")
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("replace artifact %s: %w", name, err)
	}
	return path, nil
}

func (fm *FileManager) LoadArtifact(path string, v any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		return fmt.Errorf("decode artifact %s: %w", filepath.Base(path), err)
	}
	return nil
}

// RenderPath is where the rendered minutes in the given format live.
func (fm *FileManager) RenderPath(jobID, format string) string {
	return filepath.Join(fm.renderDir, fmt.Sprintf("%s.%s", jobID, format))
}

func (fm *FileManager) SaveRendered(jobID, format string, data []byte) (string, error) {
	path := fm.RenderPath(jobID, format)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write rendered %s: %w", format, err)
	}
	return path, nil
}

// RemoveJobFiles deletes everything on disk belonging to a job.
func (fm *FileManager) RemoveJobFiles(jobID, audioPath string, formats []string) {
	if audioPath != "" {
		_ = os.Remove(audioPath)
	}
	_ = os.RemoveAll(filepath.Join(fm.artifactDir, jobID))
	for _, f := range formats {
		_ = os.Remove(fm.RenderPath(jobID, f))
	}
}

func (fm *FileManager) writeWithLimit(path string, sample []byte, file multipart.File) error {
	if fm.maxUploadBytes > 0 && int64(len(sample)) > fm.maxUploadBytes {
		return fmt.Errorf("recording exceeds maximum size")
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create recording file: %w", err)
	}

	total := int64(0)

	cleanup := func(err error) error {
		out.Close()
		os.Remove(path)
		return err
	}

	if len(sample) > 0 {
		if _, err := out.Write(sample); err != nil {
			return cleanup(fmt.Errorf("write recording sample: %w", err))
		}
		total += int64(len(sample))
	}

	buf := make([]byte, 32*1024)
	for {
		if fm.maxUploadBytes > 0 && total >= fm.maxUploadBytes {
			return cleanup(fmt.Errorf("recording exceeds maximum size"))
		}

		n, err := file.Read(buf)
		if n > 0 {
			total += int64(n)
			if fm.maxUploadBytes > 0 && total > fm.maxUploadBytes {
				return cleanup(fmt.Errorf("recording exceeds maximum size"))
			}
			if _, werr := out.Write(buf[:n]); werr != nil {
				return cleanup(fmt.Errorf("write recording: %w", werr))
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return cleanup(fmt.Errorf("read recording content: %w", err))
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close recording file: %w", err)
	}

	return nil
}

func normalizeExtension(filename string) string {
	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(filename)))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func fallbackExtension(contentType string) string {
	if ext, ok := mimeExtensionFallback[contentType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(contentType)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
