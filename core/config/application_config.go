package config

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/apuntes-app/apuntes/core/schema"
)

const (
	SegmenterPCM    = "pcm"
	SegmenterFFmpeg = "ffmpeg"
)

type ApplicationConfig struct {
	Context       context.Context
	Address       string
	UploadLimitMB int
	Debug         bool
	TempDir       string
	CORS          bool
	ApiKeys       []string

	// Speech-to-text service
	STTBaseURL        string
	STTApiKey         string
	STTModel          string
	STTLanguage       string
	STTRequestTimeout time.Duration

	RetryBaseDelay time.Duration
	ChunkDelay     time.Duration
	Segmenter      string

	WebhookURL           string
	WebhookAuthorization string
	WebhookPlainText     bool
	WebhookTimeout       time.Duration
	// WebhookAllowPrivate lets requests name webhooks on private networks.
	WebhookAllowPrivate bool

	NATSURL     string
	NATSSubject string

	DisableMetrics bool

	ProfilesFile   string
	DefaultProfile string
	Profiles       Profiles
	profilesMu     sync.RWMutex

	// JobRetention is how long finished async jobs stay queryable.
	JobRetention     time.Duration
	// JobPruneSchedule is the cron schedule that forgets expired jobs.
	JobPruneSchedule string
}

type AppOption func(*ApplicationConfig)

func NewApplicationConfig(o ...AppOption) *ApplicationConfig {
	opt := &ApplicationConfig{
		Context:           context.Background(),
		Address:           ":8080",
		UploadLimitMB:     200,
		TempDir:           os.TempDir(),
		STTBaseURL:        "https://api.openai.com/v1",
		STTModel:          "whisper-1",
		STTLanguage:       "es",
		STTRequestTimeout: 90 * time.Second,
		RetryBaseDelay:    2 * time.Second,
		ChunkDelay:        500 * time.Millisecond,
		Segmenter:         SegmenterPCM,
		WebhookTimeout:    30 * time.Second,
		NATSSubject:       "apuntes.progress",
		DefaultProfile:    ProfileStandard,
		Profiles:          BuiltinProfiles(),
		JobRetention:      time.Hour,
		JobPruneSchedule:  "@every 1m",
	}
	for _, oo := range o {
		oo(opt)
	}
	return opt
}

func WithContext(ctx context.Context) AppOption {
	return func(o *ApplicationConfig) {
		o.Context = ctx
	}
}

func WithAddress(addr string) AppOption {
	return func(o *ApplicationConfig) {
		o.Address = addr
	}
}

func WithUploadLimitMB(limit int) AppOption {
	return func(o *ApplicationConfig) {
		o.UploadLimitMB = limit
	}
}

func WithDebug(debug bool) AppOption {
	return func(o *ApplicationConfig) {
		o.Debug = debug
	}
}

func WithTempDir(dir string) AppOption {
	return func(o *ApplicationConfig) {
		if dir != "" {
			o.TempDir = dir
		}
	}
}

func WithCors(b bool) AppOption {
	return func(o *ApplicationConfig) {
		o.CORS = b
	}
}

func WithApiKeys(apiKeys []string) AppOption {
	return func(o *ApplicationConfig) {
		o.ApiKeys = apiKeys
	}
}

func WithSTTBaseURL(url string) AppOption {
	return func(o *ApplicationConfig) {
		if url != "" {
			o.STTBaseURL = url
		}
	}
}

func WithSTTApiKey(key string) AppOption {
	return func(o *ApplicationConfig) {
		o.STTApiKey = key
	}
}

func WithSTTModel(model string) AppOption {
	return func(o *ApplicationConfig) {
		if model != "" {
			o.STTModel = model
		}
	}
}

func WithSTTLanguage(language string) AppOption {
	return func(o *ApplicationConfig) {
		if language != "" {
			o.STTLanguage = language
		}
	}
}

func WithSTTRequestTimeout(d time.Duration) AppOption {
	return func(o *ApplicationConfig) {
		if d > 0 {
			o.STTRequestTimeout = d
		}
	}
}

func WithRetryBaseDelay(d time.Duration) AppOption {
	return func(o *ApplicationConfig) {
		o.RetryBaseDelay = d
	}
}

func WithChunkDelay(d time.Duration) AppOption {
	return func(o *ApplicationConfig) {
		o.ChunkDelay = d
	}
}

func WithSegmenter(name string) AppOption {
	return func(o *ApplicationConfig) {
		if name != "" {
			o.Segmenter = name
		}
	}
}

func WithWebhookURL(url string) AppOption {
	return func(o *ApplicationConfig) {
		o.WebhookURL = url
	}
}

func WithWebhookAuthorization(header string) AppOption {
	return func(o *ApplicationConfig) {
		o.WebhookAuthorization = header
	}
}

func WithWebhookPlainText(b bool) AppOption {
	return func(o *ApplicationConfig) {
		o.WebhookPlainText = b
	}
}

func WithWebhookTimeout(d time.Duration) AppOption {
	return func(o *ApplicationConfig) {
		if d > 0 {
			o.WebhookTimeout = d
		}
	}
}

func WithWebhookAllowPrivate(b bool) AppOption {
	return func(o *ApplicationConfig) {
		o.WebhookAllowPrivate = b
	}
}

func WithNATS(url, subject string) AppOption {
	return func(o *ApplicationConfig) {
		o.NATSURL = url
		if subject != "" {
			o.NATSSubject = subject
		}
	}
}

var DisableMetricsEndpoint AppOption = func(o *ApplicationConfig) {
	o.DisableMetrics = true
}

func WithProfiles(p Profiles) AppOption {
	return func(o *ApplicationConfig) {
		for name, opts := range p {
			o.Profiles[name] = opts
		}
	}
}

func WithProfilesFile(file string) AppOption {
	return func(o *ApplicationConfig) {
		o.ProfilesFile = file
	}
}

func WithDefaultProfile(name string) AppOption {
	return func(o *ApplicationConfig) {
		if name != "" {
			o.DefaultProfile = name
		}
	}
}

func WithJobRetention(d time.Duration) AppOption {
	return func(o *ApplicationConfig) {
		if d > 0 {
			o.JobRetention = d
		}
	}
}

func WithJobPruneSchedule(spec string) AppOption {
	return func(o *ApplicationConfig) {
		if spec != "" {
			o.JobPruneSchedule = spec
		}
	}
}

// TranscriptionOptions returns a copy of the named profile with the
// service-wide webhook applied when the profile has none. An empty name
// selects the default profile.
func (o *ApplicationConfig) TranscriptionOptions(profile string) (schema.TranscriptionOptions, error) {
	if profile == "" {
		profile = o.DefaultProfile
	}
	o.profilesMu.RLock()
	opts, err := o.Profiles.Get(profile)
	o.profilesMu.RUnlock()
	if err != nil {
		return schema.TranscriptionOptions{}, err
	}
	if opts.WebhookURL == "" {
		opts.WebhookURL = o.WebhookURL
	}
	return opts, nil
}

// SetProfiles replaces the loaded profiles. Built-in profiles stay available
// unless p redefines them.
func (o *ApplicationConfig) SetProfiles(p Profiles) {
	merged := BuiltinProfiles()
	for name, opts := range p {
		merged[name] = opts
	}
	o.profilesMu.Lock()
	o.Profiles = merged
	o.profilesMu.Unlock()
}

func (o *ApplicationConfig) ProfileNames() []string {
	o.profilesMu.RLock()
	defer o.profilesMu.RUnlock()
	return o.Profiles.Names()
}
