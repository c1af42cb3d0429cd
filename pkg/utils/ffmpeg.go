package utils

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
)

func ffmpegCommand(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...) // Constrain this to ffmpeg to permit security scanner to see that the command is safe.
	cmd.Env = []string{}
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func ffprobeCommand(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	cmd.Env = []string{}
	out, err := cmd.Output()
	return string(out), err
}

// AudioToWav converts audio to wav for transcribe (16 kHz mono s16le).
// WAV files already in the target format are passed through directly;
// everything else is converted via ffmpeg.
func AudioToWav(ctx context.Context, src, dst string) error {
	if strings.HasSuffix(src, ".wav") && isTargetWav(src) {
		return os.Rename(src, dst)
	}
	return convertWithFFmpeg(ctx, src, dst)
}

// isTargetWav returns true when src is a valid WAV already in the
// target format (16 kHz, mono, 16-bit PCM).
func isTargetWav(src string) bool {
	f, err := os.Open(src)
	if err != nil {
		return false
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return false
	}
	return dec.BitDepth == 16 && dec.NumChans == 1 && dec.SampleRate == 16000
}

func convertWithFFmpeg(ctx context.Context, src, dst string) error {
	commandArgs := []string{"-y", "-i", src, "-ar", "16000", "-ac", "1", "-acodec", "pcm_s16le", dst}
	out, err := ffmpegCommand(ctx, commandArgs)
	if err != nil {
		return fmt.Errorf("error: %w out: %s", err, out)
	}
	return nil
}

// AudioDuration returns the duration in seconds reported by ffprobe.
func AudioDuration(ctx context.Context, src string) (float64, error) {
	commandArgs := []string{"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", src}
	out, err := ffprobeCommand(ctx, commandArgs)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseDuration(out)
}

func parseDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("ffprobe reported no duration")
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing ffprobe duration %q: %w", s, err)
	}
	return d, nil
}

// AudioWindowToWav cuts [start, start+length) seconds out of src into a
// 16 kHz mono WAV at dst.
func AudioWindowToWav(ctx context.Context, src, dst string, start, length float64) error {
	commandArgs := []string{
		"-y",
		"-ss", strconv.FormatFloat(start, 'f', 3, 64),
		"-t", strconv.FormatFloat(length, 'f', 3, 64),
		"-i", src,
		"-ar", "16000", "-ac", "1", "-acodec", "pcm_s16le",
		dst,
	}
	out, err := ffmpegCommand(ctx, commandArgs)
	if err != nil {
		return fmt.Errorf("error cutting audio window: %w out: %s", err, out)
	}
	return nil
}
