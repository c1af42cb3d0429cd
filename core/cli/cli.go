package cli

import (
	cliContext "github.com/apuntes-app/apuntes/core/cli/context"
)

var CLI struct {
	cliContext.Context `embed:""`

	Run        RunCMD        `cmd:"" help:"Run the apuntes API server, this the default command if no other command is specified. Run 'apuntes run --help' for more information" default:"withargs"`
	Transcribe TranscribeCMD `cmd:"" help:"Transcribe a recording and print the transcript"`
	Profiles   ProfilesCMD   `cmd:"" help:"List the transcription profiles"`
}
