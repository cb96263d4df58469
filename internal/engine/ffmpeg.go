package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"minutegen/internal/domain"
)

const (
	ffmpegBinary  = "ffmpeg"
	ffprobeBinary = "ffprobe"

	// Target format for ASR input.
	decodeSampleRate = 16000
)

// FFmpegDecoder normalizes any supported audio/video container to mono
// 16 kHz PCM using the system ffmpeg.
type FFmpegDecoder struct{}

func NewFFmpegDecoder() *FFmpegDecoder {
	return &FFmpegDecoder{}
}

func (d *FFmpegDecoder) Load(ctx context.Context, fileRef string) (Audio, error) {
	if _, err := os.Stat(fileRef); err != nil {
		return Audio{}, &domain.IngestionError{Reason: fmt.Sprintf("audio file unreadable: %v", err)}
	}
	if _, err := exec.LookPath(ffmpegBinary); err != nil {
		return Audio{}, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	// ffmpeg -i input -vn -ac 1 -ar 16000 -f s16le -
	cmd := exec.CommandContext(ctx, ffmpegBinary,
		"-i", fileRef,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(decodeSampleRate),
		"-f", "s16le",
		"-",
	)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Audio{}, &domain.IngestionError{
			Reason: fmt.Sprintf("decode failed: %v: %s", err, lastLine(stderr.String())),
		}
	}

	raw := out.Bytes()
	if len(raw) < 2 {
		return Audio{}, &domain.IngestionError{Reason: "audio has zero duration"}
	}

	samples := make([]float64, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
		samples[i] = float64(v) / 32768.0
	}

	return Audio{
		Samples:     samples,
		SampleRate:  decodeSampleRate,
		DurationSec: float64(len(samples)) / float64(decodeSampleRate),
	}, nil
}

// ProbeDuration reads the container duration without decoding; used to
// sanity-check uploads before a job is accepted.
func ProbeDuration(ctx context.Context, fileRef string) (float64, error) {
	cmd := exec.CommandContext(ctx, ffprobeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		fileRef,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration: %w", err)
	}
	return dur, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
