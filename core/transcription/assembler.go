package transcription

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/apuntes-app/apuntes/core/schema"
)

// Assembler concatenates chunk outcomes in chunk order. Failed chunks leave
// a visible marker so the reader knows where text is missing.
type Assembler struct {
	timeMarkers bool
	b           strings.Builder
	entries     int
	succeeded   int
}

func NewAssembler(timeMarkers bool) *Assembler {
	return &Assembler{timeMarkers: timeMarkers}
}

// Add must be called in chunk order.
func (a *Assembler) Add(chunk schema.AudioChunk, outcome schema.ChunkOutcome) {
	switch outcome.State {
	case schema.ChunkSucceeded:
		text := strings.TrimSpace(outcome.Text)
		if text == "" {
			return
		}
		a.separate()
		if a.entries > 0 && a.timeMarkers {
			a.b.WriteString("[" + schema.FormatTimestamp(chunk.StartTime) + "]\n")
		}
		a.b.WriteString(text)
		a.succeeded++
	case schema.ChunkFailed:
		a.separate()
		a.b.WriteString("[" + schema.FormatTimestamp(chunk.StartTime) + " - transcription error]\n")
	default:
		return
	}
	a.entries++
}

func (a *Assembler) separate() {
	if a.entries > 0 {
		a.b.WriteString("\n\n")
	}
}

// Partial is the raw text accumulated so far, for progress reporting.
func (a *Assembler) Partial() string {
	return a.b.String()
}

// Transcript returns the normalized transcript, or ErrNoTranscript when no
// chunk contributed any text.
func (a *Assembler) Transcript() (string, error) {
	if a.succeeded == 0 {
		return "", ErrNoTranscript
	}
	out := Normalize(a.b.String())
	if out == "" {
		return "", ErrNoTranscript
	}
	return out, nil
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
	missingSpace    = regexp.MustCompile(`([.!?])([\p{Lu}¿¡])`)
	sentenceStart   = regexp.MustCompile(`(^|[.!?]\s+)(\p{Ll})`)
)

// Normalize tidies whitespace and sentence casing. Paragraph breaks survive,
// so time markers keep their own lines. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = strings.TrimSpace(blankLines.ReplaceAllString(s, "\n\n"))

	s = missingSpace.ReplaceAllString(s, "$1 $2")
	return sentenceStart.ReplaceAllStringFunc(s, capitalizeLast)
}

func capitalizeLast(m string) string {
	r, size := utf8.DecodeLastRuneInString(m)
	return m[:len(m)-size] + string(unicode.ToUpper(r))
}
