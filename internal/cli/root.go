package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/08351ty/Google-Meet-Bot/config"
	"github.com/08351ty/Google-Meet-Bot/internal/app"
	"github.com/08351ty/Google-Meet-Bot/internal/audio"
	"github.com/08351ty/Google-Meet-Bot/internal/browser"
	"github.com/08351ty/Google-Meet-Bot/internal/version"
)

type Dependencies struct {
	App    *app.App
	Config *config.Config

	// Host lookups; nil means the real implementation.
	ListDevices    func() ([]audio.InputDevice, error)
	LocalProcesses func(ctx context.Context) ([]browser.LocalProcess, error)
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps.ListDevices == nil {
		deps.ListDevices = audio.ListInputDevices
	}
	if deps.LocalProcesses == nil {
		deps.LocalProcesses = browser.LocalProcesses
	}

	rootCmd := &cobra.Command{
		Use:   "meetbot",
		Short: "Join Google Meet calls, record them, and leave when they end",
		Long: "A CLI bot that joins a Google Meet call through a Chrome instance with remote debugging,\n" +
			"records the call audio, leaves when everyone else has gone or the time limit is reached,\n" +
			"and optionally transcribes with Mistral Voxtral and summarizes with Claude Haiku.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.AddCommand(NewJoinCmd(deps))
	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewTranscribeCmd(deps))
	rootCmd.AddCommand(NewDevicesCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))
	rootCmd.AddCommand(NewSetupCmd(deps))

	return rootCmd
}
