package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apuntes-app/apuntes/pkg/utils"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mudler/xlog"
)

// Decoder turns a compressed or containerized blob into interleaved PCM samples.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*goaudio.IntBuffer, error)
}

var (
	_ Decoder = WAVDecoder{}
	_ Decoder = FFmpegDecoder{}
	_ Decoder = ChainDecoder{}
)

type WAVDecoder struct{}

func (WAVDecoder) Decode(ctx context.Context, data []byte) (*goaudio.IntBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !IsWAV(data) {
		return nil, fmt.Errorf("%w: not a wav stream", ErrDecode)
	}
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing pcm format", ErrDecode)
	}
	if len(buf.Data) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrDecode)
	}
	if buf.SourceBitDepth == 0 {
		buf.SourceBitDepth = int(dec.BitDepth)
	}
	return buf, nil
}

// FFmpegDecoder transcodes any container ffmpeg understands to 16 kHz mono
// WAV and decodes that. Temporary files are removed on every path.
type FFmpegDecoder struct {
	TempDir string
}

func (d FFmpegDecoder) Decode(ctx context.Context, data []byte) (*goaudio.IntBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, cleanupSrc, err := utils.CreateTempFileFromBytes(data, d.TempDir, "decode-src-*")
	if err != nil {
		return nil, err
	}
	defer cleanupSrc()

	dst, err := os.CreateTemp(d.TempDir, "decode-*.wav")
	if err != nil {
		return nil, err
	}
	dstName := dst.Name()
	dst.Close()
	defer os.Remove(dstName)

	if err := utils.AudioToWav(ctx, src, dstName); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	wavData, err := os.ReadFile(dstName)
	if err != nil {
		return nil, err
	}
	xlog.Debug("transcoded audio to wav", "input_bytes", len(data), "wav_bytes", len(wavData))
	return WAVDecoder{}.Decode(ctx, wavData)
}

// ChainDecoder returns the first successful decode.
type ChainDecoder []Decoder

func (c ChainDecoder) Decode(ctx context.Context, data []byte) (*goaudio.IntBuffer, error) {
	var errs []error
	for _, d := range c {
		buf, err := d.Decode(ctx, data)
		if err == nil {
			return buf, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no decoder configured", ErrDecode)
	}
	return nil, errors.Join(errs...)
}

// DefaultDecoder decodes WAV natively and falls back to ffmpeg.
func DefaultDecoder(tempDir string) Decoder {
	return ChainDecoder{WAVDecoder{}, FFmpegDecoder{TempDir: tempDir}}
}
