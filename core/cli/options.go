package cli

import (
	"time"

	"github.com/apuntes-app/apuntes/core/config"
)

// STTFlags are shared by every command that talks to the speech-to-text service.
type STTFlags struct {
	STTBaseURL        string        `env:"APUNTES_STT_BASE_URL,OPENAI_BASE_URL" default:"https://api.openai.com/v1" help:"Base URL of the OpenAI compatible speech-to-text API" group:"stt"`
	STTApiKey         string        `env:"APUNTES_STT_API_KEY,OPENAI_API_KEY" help:"API key for the speech-to-text API" group:"stt"`
	STTModel          string        `env:"APUNTES_STT_MODEL" default:"whisper-1" help:"Speech-to-text model" group:"stt"`
	STTLanguage       string        `env:"APUNTES_STT_LANGUAGE" default:"es" help:"Language hint sent with every chunk" group:"stt"`
	STTRequestTimeout time.Duration `env:"APUNTES_STT_REQUEST_TIMEOUT" default:"90s" help:"Timeout of a single chunk request" group:"stt"`
	RetryBaseDelay    time.Duration `env:"APUNTES_RETRY_BASE_DELAY" default:"2s" help:"Backoff before the first retry of a chunk, doubled on every further retry" group:"stt"`
	ChunkDelay        time.Duration `env:"APUNTES_CHUNK_DELAY" default:"500ms" help:"Pause between two chunk requests" group:"stt"`

	Segmenter      string `env:"APUNTES_SEGMENTER" default:"pcm" enum:"pcm,ffmpeg" help:"How recordings are split into chunks [${enum}]" group:"audio"`
	TempDir        string `env:"APUNTES_TEMP_DIR,TMPDIR" type:"path" help:"Directory for temporary audio files" group:"audio"`
	ProfilesFile   string `env:"APUNTES_PROFILES_FILE" type:"path" help:"YAML file with additional transcription profiles" group:"profiles"`
	DefaultProfile string `env:"APUNTES_DEFAULT_PROFILE" default:"standard" help:"Profile used when a request names none" group:"profiles"`

	WebhookAuthorization string        `env:"APUNTES_WEBHOOK_AUTHORIZATION" help:"Authorization header sent to webhooks" group:"webhook"`
	WebhookPlainText     bool          `env:"APUNTES_WEBHOOK_PLAIN_TEXT" help:"Send the bare transcript as text/plain instead of JSON" group:"webhook"`
	WebhookTimeout       time.Duration `env:"APUNTES_WEBHOOK_TIMEOUT" default:"30s" help:"Timeout of a webhook delivery" group:"webhook"`

	NATSURL     string `env:"APUNTES_NATS_URL,NATS_URL" help:"NATS server to publish progress events to" group:"events"`
	NATSSubject string `env:"APUNTES_NATS_SUBJECT" default:"apuntes.progress" help:"Subject prefix of progress events, the run id is appended" group:"events"`
}

func (f *STTFlags) appOptions() []config.AppOption {
	return []config.AppOption{
		config.WithSTTBaseURL(f.STTBaseURL),
		config.WithSTTApiKey(f.STTApiKey),
		config.WithSTTModel(f.STTModel),
		config.WithSTTLanguage(f.STTLanguage),
		config.WithSTTRequestTimeout(f.STTRequestTimeout),
		config.WithRetryBaseDelay(f.RetryBaseDelay),
		config.WithChunkDelay(f.ChunkDelay),
		config.WithSegmenter(f.Segmenter),
		config.WithTempDir(f.TempDir),
		config.WithProfilesFile(f.ProfilesFile),
		config.WithDefaultProfile(f.DefaultProfile),
		config.WithWebhookAuthorization(f.WebhookAuthorization),
		config.WithWebhookPlainText(f.WebhookPlainText),
		config.WithWebhookTimeout(f.WebhookTimeout),
		config.WithNATS(f.NATSURL, f.NATSSubject),
	}
}
