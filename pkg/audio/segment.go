package audio

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/apuntes-app/apuntes/pkg/utils"
	goaudio "github.com/go-audio/audio"
	"github.com/mudler/xlog"
)

// Chunk is one window of a recording. Times are in seconds.
type Chunk struct {
	Data      []byte
	StartTime float64
	EndTime   float64
	// Degraded is set when no timing information could be recovered.
	Degraded bool
}

// Segmentation is the ordered, gapless output of a Segmenter.
type Segmentation struct {
	Chunks   []Chunk
	Duration float64
	// Warning is set when the segmenter fell back to a single chunk.
	Warning error
}

func (s Segmentation) Degraded() bool {
	return len(s.Chunks) == 1 && s.Chunks[0].Degraded
}

// Segmenter splits a recording into chunks no longer than maxChunkDuration.
// Decode failures are not errors: the whole blob comes back as one chunk and
// Warning explains why. Errors are reserved for invalid input and cancellation.
type Segmenter interface {
	Segment(ctx context.Context, data []byte, maxChunkDuration float64) (Segmentation, error)
}

var (
	_ Segmenter = (*PCMSegmenter)(nil)
	_ Segmenter = (*FFmpegSegmenter)(nil)
)

func checkSegmentInput(data []byte, maxChunkDuration float64) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if maxChunkDuration <= 0 {
		return fmt.Errorf("max chunk duration must be positive, got %v", maxChunkDuration)
	}
	return nil
}

func wholeBlob(data []byte, duration float64, warning error) Segmentation {
	return Segmentation{
		Chunks:   []Chunk{{Data: data, StartTime: 0, EndTime: duration}},
		Duration: duration,
		Warning:  warning,
	}
}

func degradedBlob(data []byte, warning error) Segmentation {
	return Segmentation{
		Chunks:  []Chunk{{Data: data, Degraded: true}},
		Warning: warning,
	}
}

// probeOrDegrade handles the steps every strategy shares: measure, and return
// early when the blob fits in one window or cannot be measured at all.
func probeOrDegrade(ctx context.Context, prober Prober, data []byte, maxChunkDuration float64) (float64, *Segmentation, error) {
	duration, err := prober.Probe(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		xlog.Warn("could not measure audio duration, using a single degraded chunk", "error", err)
		s := degradedBlob(data, fmt.Errorf("duration probe failed: %w", err))
		return 0, &s, nil
	}
	if duration <= maxChunkDuration {
		s := wholeBlob(data, duration, nil)
		return duration, &s, nil
	}
	return duration, nil, nil
}

// PCMSegmenter decodes the recording and slices the raw samples into
// windows, re-encoding each one as 16-bit PCM WAV.
type PCMSegmenter struct {
	prober  Prober
	decoder Decoder
}

func NewPCMSegmenter(prober Prober, decoder Decoder) *PCMSegmenter {
	return &PCMSegmenter{prober: prober, decoder: decoder}
}

func (s *PCMSegmenter) Segment(ctx context.Context, data []byte, maxChunkDuration float64) (Segmentation, error) {
	if err := checkSegmentInput(data, maxChunkDuration); err != nil {
		return Segmentation{}, err
	}

	duration, early, err := probeOrDegrade(ctx, s.prober, data, maxChunkDuration)
	if err != nil {
		return Segmentation{}, err
	}
	if early != nil {
		return *early, nil
	}

	buf, err := s.decoder.Decode(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return Segmentation{}, ctx.Err()
		}
		xlog.Warn("could not decode audio for segmentation, using a single chunk", "duration", duration, "error", err)
		return wholeBlob(data, duration, fmt.Errorf("segmentation failed: %w", err)), nil
	}

	chunks, err := slicePCM(ctx, buf, maxChunkDuration)
	if err != nil {
		if ctx.Err() != nil {
			return Segmentation{}, ctx.Err()
		}
		xlog.Warn("could not slice decoded audio, using a single chunk", "duration", duration, "error", err)
		return wholeBlob(data, duration, fmt.Errorf("segmentation failed: %w", err)), nil
	}

	xlog.Debug("segmented audio", "duration", duration, "chunks", len(chunks), "max_chunk_duration", maxChunkDuration)
	return Segmentation{Chunks: chunks, Duration: duration}, nil
}

func slicePCM(ctx context.Context, buf *goaudio.IntBuffer, maxChunkDuration float64) ([]Chunk, error) {
	channels := buf.Format.NumChannels
	rate := buf.Format.SampleRate
	frames := len(buf.Data) / channels
	window := int(math.Floor(maxChunkDuration * float64(rate)))
	if window <= 0 {
		return nil, fmt.Errorf("window of %vs is shorter than one frame at %d Hz", maxChunkDuration, rate)
	}

	var chunks []Chunk
	for start := 0; start < frames; start += window {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+window, frames)
		samples := make([]int, (end-start)*channels)
		copy(samples, buf.Data[start*channels:end*channels])

		part := &goaudio.IntBuffer{
			Format:         buf.Format,
			Data:           samples,
			SourceBitDepth: buf.SourceBitDepth,
		}
		var out bytes.Buffer
		if err := EncodeWAV(&out, part); err != nil {
			return nil, err
		}
		chunks = append(chunks, Chunk{
			Data:      out.Bytes(),
			StartTime: float64(start) / float64(rate),
			EndTime:   float64(end) / float64(rate),
		})
	}
	return chunks, nil
}

// FFmpegSegmenter delegates cutting to ffmpeg, one invocation per window.
type FFmpegSegmenter struct {
	prober  Prober
	tempDir string
}

func NewFFmpegSegmenter(prober Prober, tempDir string) *FFmpegSegmenter {
	return &FFmpegSegmenter{prober: prober, tempDir: tempDir}
}

func (s *FFmpegSegmenter) Segment(ctx context.Context, data []byte, maxChunkDuration float64) (Segmentation, error) {
	if err := checkSegmentInput(data, maxChunkDuration); err != nil {
		return Segmentation{}, err
	}

	duration, early, err := probeOrDegrade(ctx, s.prober, data, maxChunkDuration)
	if err != nil {
		return Segmentation{}, err
	}
	if early != nil {
		return *early, nil
	}

	chunks, err := s.cut(ctx, data, duration, maxChunkDuration)
	if err != nil {
		if ctx.Err() != nil {
			return Segmentation{}, ctx.Err()
		}
		xlog.Warn("ffmpeg segmentation failed, using a single chunk", "duration", duration, "error", err)
		return wholeBlob(data, duration, fmt.Errorf("segmentation failed: %w", err)), nil
	}
	return Segmentation{Chunks: chunks, Duration: duration}, nil
}

func (s *FFmpegSegmenter) cut(ctx context.Context, data []byte, duration, maxChunkDuration float64) ([]Chunk, error) {
	src, cleanup, err := utils.CreateTempFileFromBytes(data, s.tempDir, "segment-src-*")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	dir, err := os.MkdirTemp(s.tempDir, "segments")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	windows := Windows(duration, maxChunkDuration)
	chunks := make([]Chunk, 0, len(windows))
	for i, w := range windows {
		dst := filepath.Join(dir, fmt.Sprintf("chunk-%03d.wav", i))
		if err := utils.AudioWindowToWav(ctx, src, dst, w[0], w[1]-w[0]); err != nil {
			return nil, err
		}
		out, err := os.ReadFile(dst)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, Chunk{Data: out, StartTime: w[0], EndTime: w[1]})
	}
	return chunks, nil
}

// Windows partitions [0, duration) into consecutive [start, end) pairs of at
// most maxChunkDuration seconds. The last window may be shorter.
func Windows(duration, maxChunkDuration float64) [][2]float64 {
	if duration <= 0 || maxChunkDuration <= 0 {
		return nil
	}
	n := int(math.Ceil(duration / maxChunkDuration))
	windows := make([][2]float64, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * maxChunkDuration
		end := math.Min(start+maxChunkDuration, duration)
		windows = append(windows, [2]float64{start, end})
	}
	return windows
}
