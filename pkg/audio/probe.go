package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/apuntes-app/apuntes/pkg/utils"
	"github.com/go-audio/wav"
)

var (
	// ErrDecode is returned when a blob cannot be loaded as playable audio.
	ErrDecode = errors.New("audio could not be decoded")
	ErrEmpty  = errors.New("empty audio input")
)

// Prober measures the duration of an audio blob in seconds.
type Prober interface {
	Probe(ctx context.Context, data []byte) (float64, error)
}

var (
	_ Prober = WAVProber{}
	_ Prober = FFProbeProber{}
	_ Prober = ChainProber{}
)

// WAVProber reads the duration from a RIFF/WAVE header without decoding samples.
type WAVProber struct{}

func (WAVProber) Probe(ctx context.Context, data []byte) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !IsWAV(data) {
		return 0, fmt.Errorf("%w: not a wav stream", ErrDecode)
	}
	if !wav.NewDecoder(bytes.NewReader(data)).IsValidFile() {
		return 0, fmt.Errorf("%w: invalid wav header", ErrDecode)
	}
	d, err := wav.NewDecoder(bytes.NewReader(data)).Duration()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: zero-length wav", ErrDecode)
	}
	return d.Seconds(), nil
}

// FFProbeProber asks ffprobe for the duration of any container it knows.
// The blob is spooled to a temporary file that is always removed.
type FFProbeProber struct {
	TempDir string
}

func (p FFProbeProber) Probe(ctx context.Context, data []byte) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	src, cleanup, err := utils.CreateTempFileFromBytes(data, p.TempDir, "probe-*")
	if err != nil {
		return 0, err
	}
	defer cleanup()

	d, err := utils.AudioDuration(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: zero-length audio", ErrDecode)
	}
	return d, nil
}

// ChainProber returns the first successful probe.
type ChainProber []Prober

func (c ChainProber) Probe(ctx context.Context, data []byte) (float64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: %w", ErrDecode, ErrEmpty)
	}
	var errs []error
	for _, p := range c {
		d, err := p.Probe(ctx, data)
		if err == nil {
			return d, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return 0, fmt.Errorf("%w: no prober configured", ErrDecode)
	}
	return 0, errors.Join(errs...)
}

// DefaultProber reads WAV natively and shells out to ffprobe for everything else.
func DefaultProber(tempDir string) Prober {
	return ChainProber{WAVProber{}, FFProbeProber{TempDir: tempDir}}
}
