// Package media wraps the external ffmpeg/ffprobe tools that normalize
// captured audio before transcription.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	canonicalChannels   = 1
	canonicalSampleRate = 16000
)

// TranscodeError carries the tool's exit failure plus captured stderr so the
// caller can surface a useful message.
type TranscodeError struct {
	Output string
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("transcode: %v", e.Err)
	}
	return fmt.Sprintf("transcode: %v: %s", e.Err, e.Output)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Transcoder shells out to ffmpeg/ffprobe. The binary names are variable so
// tests can substitute fakes.
type Transcoder struct {
	ffmpegBin  string
	ffprobeBin string
}

func NewTranscoder() *Transcoder {
	return &Transcoder{ffmpegBin: "ffmpeg", ffprobeBin: "ffprobe"}
}

// NewTranscoderWithBins overrides the tool binaries for non-PATH installs.
func NewTranscoderWithBins(ffmpeg, ffprobe string) *Transcoder {
	t := NewTranscoder()
	if ffmpeg != "" {
		t.ffmpegBin = ffmpeg
	}
	if ffprobe != "" {
		t.ffprobeBin = ffprobe
	}
	return t
}

// Transcode converts whatever container was captured into canonical
// mono/16kHz WAV next to outDir and returns the output path. A non-zero
// ffmpeg exit is fatal.
func (t *Transcoder) Transcode(ctx context.Context, inputPath, outDir string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outPath := filepath.Join(outDir, base+".wav")

	cmd := exec.CommandContext(ctx, t.ffmpegBin,
		"-y", "-i", inputPath,
		"-ac", strconv.Itoa(canonicalChannels),
		"-ar", strconv.Itoa(canonicalSampleRate),
		"-f", "wav",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &TranscodeError{Output: strings.TrimSpace(stderr.String()), Err: err}
	}
	return outPath, nil
}

// ProbeDuration returns the audio duration in whole seconds. It is a
// best-effort companion to Transcode; callers treat failure as a missing
// duration, never as a fatal pipeline error.
func (t *Transcoder) ProbeDuration(ctx context.Context, path string) (int, error) {
	out, err := exec.CommandContext(ctx, t.ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration: %w", err)
	}
	return int(seconds + 0.5), nil
}
