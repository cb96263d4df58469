package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type uploadFile struct {
	*bytes.Reader
}

func (uploadFile) Close() error { return nil }

func newUpload(data []byte) uploadFile {
	return uploadFile{bytes.NewReader(data)}
}

func newTestFileManager(t *testing.T, maxBytes int64) *FileManager {
	t.Helper()
	fm, err := NewFileManager(t.TempDir(), maxBytes)
	if err != nil {
		t.Fatalf("new file manager: %v", err)
	}
	return fm
}

func TestSaveUploadedRecording(t *testing.T) {
	fm := newTestFileManager(t, 0)
	content := []byte("fake audio bytes")

	path, err := fm.SaveUploadedRecording(newUpload(content), "standup.wav")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if filepath.Ext(path) != ".wav" {
		t.Fatalf("saved with extension %q, want .wav", filepath.Ext(path))
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("saved content differs from upload")
	}
}

func TestSaveUploadedRecordingRejectsUnsupportedFormat(t *testing.T) {
	fm := newTestFileManager(t, 0)

	_, err := fm.SaveUploadedRecording(newUpload([]byte("text")), "notes.txt")
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestSaveUploadedRecordingEnforcesSizeLimit(t *testing.T) {
	fm := newTestFileManager(t, 1024)

	big := make([]byte, 4096)
	_, err := fm.SaveUploadedRecording(newUpload(big), "long.mp3")
	if err == nil || !strings.Contains(err.Error(), "maximum size") {
		t.Fatalf("expected size limit error, got %v", err)
	}

	// The partial file must not be left behind.
	entries, rerr := os.ReadDir(fm.audioDir)
	if rerr != nil {
		t.Fatalf("read audio dir: %v", rerr)
	}
	if len(entries) != 0 {
		t.Fatalf("partial upload left on disk: %v", entries)
	}
}

func TestSaveUploadedRecordingSniffsMissingExtension(t *testing.T) {
	fm := newTestFileManager(t, 0)

	// An MP3 frame header is enough for content sniffing.
	data := append([]byte("ID3"), make([]byte, 64)...)
	path, err := fm.SaveUploadedRecording(newUpload(data), "recording")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Ext(path) != ".mp3" {
		t.Fatalf("sniffed extension %q, want .mp3", filepath.Ext(path))
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	fm := newTestFileManager(t, 0)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	path, err := fm.SaveArtifact("job-1", "transcript", payload{Name: "x", Count: 3})
	if err != nil {
		t.Fatalf("save artifact: %v", err)
	}
	if filepath.Base(path) != "transcript.json" {
		t.Fatalf("artifact path = %q", path)
	}

	var got payload
	if err := fm.LoadArtifact(path, &got); err != nil {
		t.Fatalf("load artifact: %v", err)
	}
	if got.Name != "x" || got.Count != 3 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestRemoveJobFiles(t *testing.T) {
	fm := newTestFileManager(t, 0)

	audioPath, err := fm.SaveUploadedRecording(newUpload([]byte("audio")), "m.wav")
	if err != nil {
		t.Fatalf("save recording: %v", err)
	}
	artifactPath, err := fm.SaveArtifact("job-9", "chunks", []int{1, 2})
	if err != nil {
		t.Fatalf("save artifact: %v", err)
	}
	renderedPath, err := fm.SaveRendered("job-9", "html", []byte("<html></html>"))
	if err != nil {
		t.Fatalf("save rendered: %v", err)
	}

	fm.RemoveJobFiles("job-9", audioPath, []string{"html"})

	for _, p := range []string{audioPath, artifactPath, renderedPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("%s still exists", p)
		}
	}
}
