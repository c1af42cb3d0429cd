package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	cliContext "github.com/apuntes-app/apuntes/core/cli/context"
	"github.com/apuntes-app/apuntes/core/config"
)

type ProfilesCMD struct {
	ProfilesFile   string `env:"APUNTES_PROFILES_FILE" type:"path" help:"YAML file with additional transcription profiles"`
	DefaultProfile string `env:"APUNTES_DEFAULT_PROFILE" default:"standard" help:"Profile used when a request names none"`
}

func (p *ProfilesCMD) Run(ctx *cliContext.Context) error {
	appConfig := config.NewApplicationConfig(config.WithDefaultProfile(p.DefaultProfile))
	if p.ProfilesFile != "" {
		profiles, err := config.LoadProfiles(p.ProfilesFile)
		if err != nil {
			return err
		}
		appConfig.SetProfiles(profiles)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMAX CHUNK\tRETRIES\tSPEAKERS\tMARKERS\tSUBJECT")
	for _, name := range appConfig.ProfileNames() {
		opts, err := appConfig.TranscriptionOptions(name)
		if err != nil {
			return err
		}
		if name == appConfig.DefaultProfile {
			name += " (default)"
		}
		fmt.Fprintf(w, "%s\t%.0fs\t%d\t%s\t%t\t%s\n", name, opts.MaxChunkDuration, opts.RetryAttempts, opts.SpeakerMode, opts.TimeMarkers, opts.Subject)
	}
	return w.Flush()
}
