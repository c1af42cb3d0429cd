package transcription

import (
	"strings"

	"github.com/apuntes-app/apuntes/core/schema"
)

const (
	singleSpeakerPrompt   = "Transcripción de una clase con un único orador principal. Transcribe fielmente lo que dice el orador principal, con puntuación y mayúsculas correctas."
	multipleSpeakerPrompt = "Transcripción de una conversación con varios participantes. Distingue las intervenciones de cada hablante y marca con claridad los cambios de turno, con puntuación y mayúsculas correctas."
)

// BuildPrompt returns the instruction sent with every chunk. The subject,
// when present, biases vocabulary toward the course material.
func BuildPrompt(mode schema.SpeakerMode, subject string) string {
	prompt := singleSpeakerPrompt
	if mode == schema.SpeakerModeMultiple {
		prompt = multipleSpeakerPrompt
	}
	if s := strings.TrimSpace(subject); s != "" {
		prompt += " Materia: " + s + "."
	}
	return prompt
}

var languageCodes = map[string]string{
	"spanish":    "es",
	"english":    "en",
	"portuguese": "pt",
	"french":     "fr",
	"italian":    "it",
	"german":     "de",
	"catalan":    "ca",
	"galician":   "gl",
	"basque":     "eu",
}

// normalizeLanguage maps the language reported by the service to an ISO
// 639-1 code. verbose_json answers with English names ("spanish").
func normalizeLanguage(reported, fallback string) string {
	l := strings.ToLower(strings.TrimSpace(reported))
	if code, ok := languageCodes[l]; ok {
		return code
	}
	if len(l) == 2 {
		return l
	}
	return fallback
}
