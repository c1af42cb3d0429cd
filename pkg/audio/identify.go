package audio

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

var webmMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// extensions the speech-to-text service accepts, keyed by extension.
var knownExtensions = map[string]bool{
	"flac": true, "mp3": true, "mp4": true, "mpeg": true, "mpga": true,
	"m4a": true, "ogg": true, "oga": true, "wav": true, "webm": true,
}

func extensionFromFileType(ft tag.FileType) string {
	switch ft {
	case tag.FLAC:
		return "flac"
	case tag.MP3:
		return "mp3"
	case tag.OGG:
		return "ogg"
	case tag.M4A, tag.M4B, tag.M4P, tag.ALAC:
		return "m4a"
	default:
		return ""
	}
}

// Identify reads the container tag recognizes from r and returns its file
// extension, or "" when the format is unknown.
func Identify(r io.ReadSeeker) (string, error) {
	_, fileType, err := tag.Identify(r)
	if err != nil || fileType == tag.UnknownFileType {
		return "", err
	}
	return extensionFromFileType(fileType), nil
}

// IdentifyBytes sniffs an in-memory blob. Browser recorders produce WebM and
// segmenters produce WAV, neither of which tag recognizes, so both are
// matched on their magic bytes first.
func IdentifyBytes(data []byte) string {
	switch {
	case IsWAV(data):
		return "wav"
	case bytes.HasPrefix(data, webmMagic):
		return "webm"
	}
	ext, err := Identify(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return ext
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// ChunkFileName names a chunk for upload, e.g. "chunk-002.wav". The extension
// is sniffed from data, then taken from original when it names a supported
// audio format, and is "webm" otherwise.
func ChunkFileName(index int, data []byte, original string) string {
	ext := IdentifyBytes(data)
	if ext == "" {
		ext = strings.ToLower(strings.TrimPrefix(filepath.Ext(original), "."))
	}
	if !knownExtensions[ext] {
		ext = "webm"
	}
	return fmt.Sprintf("chunk-%03d.%s", index, ext)
}
