package audio

import (
	"encoding/binary"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
)

// WAVHeader represents the WAV file header (44 bytes for PCM)
type WAVHeader struct {
	// RIFF Chunk (12 bytes)
	ChunkID   [4]byte
	ChunkSize uint32
	Format    [4]byte

	// fmt Subchunk (16 bytes)
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16

	// data Subchunk (8 bytes)
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

const wavHeaderSize = 44

// NewWAVHeader builds a 16-bit PCM header for pcmLen bytes of sample data.
func NewWAVHeader(pcmLen uint32, sampleRate uint32, numChannels uint16) WAVHeader {
	blockAlign := numChannels * 2
	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16, // PCM = 16 bytes
		AudioFormat:   1,  // PCM
		NumChannels:   numChannels,
		SampleRate:    sampleRate,
		ByteRate:      sampleRate * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: pcmLen,
	}

	header.ChunkSize = 36 + header.Subchunk2Size

	return header
}

func (h *WAVHeader) Write(writer io.Writer) error {
	return binary.Write(writer, binary.LittleEndian, h)
}

// EncodeWAV writes buf as a 16-bit PCM WAV. Samples with a different source
// bit depth are rescaled.
func EncodeWAV(w io.Writer, buf *goaudio.IntBuffer) error {
	if buf == nil || buf.Format == nil {
		return fmt.Errorf("encode wav: missing format")
	}
	if buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return fmt.Errorf("encode wav: invalid format %d ch / %d Hz", buf.Format.NumChannels, buf.Format.SampleRate)
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(to16Bit(s, buf.SourceBitDepth)))
	}

	hdr := NewWAVHeader(uint32(len(pcm)), uint32(buf.Format.SampleRate), uint16(buf.Format.NumChannels))
	if err := hdr.Write(w); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	_, err := w.Write(pcm)
	return err
}

func to16Bit(sample int, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned
		return int16((sample - 128) << 8)
	case 24:
		return int16(sample >> 8)
	case 32:
		return int16(sample >> 16)
	default:
		return int16(sample)
	}
}
