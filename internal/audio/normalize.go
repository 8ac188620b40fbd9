// Package audio converts uploaded recordings into the canonical waveform both
// recognition backends expect: 16 kHz, mono, 16-bit PCM WAV.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-audio/wav"

	"github.com/nadzzz/interviewdesk/internal/process"
	"github.com/nadzzz/interviewdesk/internal/transcriber"
)

// Canonical output format.
const (
	SampleRate = 16000
	Channels   = 1
	BitDepth   = 16
)

// Info describes a decoded WAV header.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// Normalizer runs ffmpeg to produce the canonical waveform.
type Normalizer struct {
	ffmpegBin string
	runner    process.Runner
	timeout   time.Duration
}

// NewNormalizer creates a normalizer using the given ffmpeg binary.
func NewNormalizer(ffmpegBin string, runner process.Runner, timeout time.Duration) *Normalizer {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Normalizer{ffmpegBin: ffmpegBin, runner: runner, timeout: timeout}
}

// Normalize converts src into dst and verifies the result. Any failure is
// returned as *transcriber.ConversionError carrying the converter output.
func (n *Normalizer) Normalize(ctx context.Context, src, dst string) (Info, process.Result, error) {
	if _, err := os.Stat(src); err != nil {
		return Info{}, process.Result{}, &transcriber.ConversionError{Err: fmt.Errorf("cannot access input audio: %w", err)}
	}

	res, err := n.runner.Run(ctx, process.Command{
		Name:    n.ffmpegBin,
		Args:    BuildFFmpegArgs(src, dst),
		Timeout: n.timeout,
	})
	if err != nil {
		return Info{}, res, &transcriber.ConversionError{Output: res.Output(), Err: err}
	}

	info, err := Probe(dst)
	if err != nil {
		return Info{}, res, &transcriber.ConversionError{
			Output: res.Output(),
			Err:    fmt.Errorf("ffmpeg completed but output is unusable: %w", err),
		}
	}
	if info.SampleRate != SampleRate || info.Channels != Channels {
		return info, res, &transcriber.ConversionError{
			Output: res.Output(),
			Err:    fmt.Errorf("unexpected output format %d Hz / %d ch", info.SampleRate, info.Channels),
		}
	}

	slog.Debug("audio normalized", "src", src, "dst", dst, "duration", info.Duration, "took", res.Duration)
	return info, res, nil
}

// Probe reads the header of a WAV file.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Info{}, errors.New("not a valid PCM WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("locating wav data chunk: %w", err)
	}

	info := Info{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if bytesPerSec := info.SampleRate * info.Channels * info.BitDepth / 8; bytesPerSec > 0 {
		info.Duration = time.Duration(float64(dec.PCMLen()) / float64(bytesPerSec) * float64(time.Second))
	}
	return info, nil
}

// BuildFFmpegArgs builds conversion args for mono 16k PCM WAV output.
func BuildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		outPath,
	}
}
