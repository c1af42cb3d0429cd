package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/apuntes-app/apuntes/core/schema"
	"github.com/mudler/xlog"
	"gopkg.in/yaml.v3"
)

const (
	ProfileQuick    = "quick"
	ProfileStandard = "standard"
	ProfileLecture  = "lecture"
)

var ErrUnknownProfile = errors.New("unknown transcription profile")

// Profiles maps a profile name to the options a pipeline run uses. Every
// call site of the pipeline differs only by profile.
type Profiles map[string]schema.TranscriptionOptions

func BuiltinProfiles() Profiles {
	quick := schema.DefaultTranscriptionOptions()
	quick.MaxChunkDuration = 60
	quick.RetryAttempts = 1

	lecture := schema.DefaultTranscriptionOptions()
	lecture.MaxChunkDuration = schema.MaxChunkDurationCeiling

	return Profiles{
		ProfileQuick:    quick,
		ProfileStandard: schema.DefaultTranscriptionOptions(),
		ProfileLecture:  lecture,
	}
}

func (p Profiles) Get(name string) (schema.TranscriptionOptions, error) {
	opts, ok := p[name]
	if !ok {
		return schema.TranscriptionOptions{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return opts, nil
}

func (p Profiles) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadProfiles reads a YAML document of named profiles. Fields missing from
// a profile take the standard defaults, and every profile is validated.
//
//	lecture:
//	  max_chunk_duration: 420
//	  speaker_mode: single
//	seminar:
//	  speaker_mode: multiple
//	  retry_attempts: 5
func LoadProfiles(file string) (Profiles, error) {
	f, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("cannot read profiles file: %w", err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(f, &raw); err != nil {
		return nil, fmt.Errorf("cannot unmarshal profiles file: %w", err)
	}

	profiles := Profiles{}
	for name, node := range raw {
		opts := schema.DefaultTranscriptionOptions()
		if err := node.Decode(&opts); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		if err := opts.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		profiles[name] = opts
	}

	xlog.Debug("loaded transcription profiles", "file", file, "profiles", profiles.Names())
	return profiles, nil
}
