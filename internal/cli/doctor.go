package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/08351ty/Google-Meet-Bot/internal/output"
)

const checkTimeout = 3 * time.Second

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(cmd.OutOrStdout())
			cfg := deps.Config
			ok := true

			devices, err := deps.ListDevices()
			switch {
			case err != nil:
				f.SetupCheck("Audio input", false, err.Error())
				ok = false
			case len(devices) == 0:
				f.SetupCheck("Audio input", false, "no input devices found")
				ok = false
			default:
				name := ""
				for _, d := range devices {
					if d.Default {
						name = d.Name
					}
				}
				if name == "" {
					f.SetupCheck("Audio input", false, "no default input device")
					ok = false
				} else {
					f.SetupCheck("Audio input", true, name)
				}
			}

			_, port, _ := net.SplitHostPort(cfg.ChromeDebugAddr)
			procs, err := deps.LocalProcesses(cmd.Context())
			if err != nil {
				f.SetupCheck("Chrome process", false, err.Error())
			} else {
				found, debugging := len(procs) > 0, false
				for _, p := range procs {
					if p.DebugPort == port {
						debugging = true
					}
				}
				switch {
				case debugging:
					f.SetupCheck("Chrome process", true, "running with --remote-debugging-port="+port)
				case found:
					f.SetupCheck("Chrome process", false, "running without remote debugging on port "+port+". Run: meetbot setup")
					ok = false
				default:
					f.SetupCheck("Chrome process", false, "not running. Run: meetbot setup")
					ok = false
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			v, err := deps.App.Browser.Version(ctx)
			cancel()
			if err != nil {
				f.SetupCheck("Debug endpoint", false, err.Error())
				ok = false
			} else {
				f.SetupCheck("Debug endpoint", true, fmt.Sprintf("%s at %s", v.Browser, cfg.ChromeDebugAddr))
			}

			if cfg.MistralAPIKey != "" {
				f.SetupCheck("Mistral API key", true, "configured")
			} else if cfg.Transcribe {
				f.SetupCheck("Mistral API key", false, "not set. Set MEETBOT_MISTRAL_API_KEY or add to config")
				ok = false
			}

			if cfg.AnthropicKey != "" {
				f.SetupCheck("Anthropic API key", true, "configured")
			} else if cfg.Summarize {
				f.SetupCheck("Anthropic API key", false, "not set. Set MEETBOT_ANTHROPIC_API_KEY or add to config")
				ok = false
			}

			if _, err := os.Stat(cfg.MeetingsDir); err != nil {
				f.SetupCheck("Meetings directory", false, err.Error())
				ok = false
			} else {
				f.SetupCheck("Meetings directory", true, cfg.MeetingsDir)
			}

			if a := deps.App.Archiver; a != nil {
				f.SetupCheck("Archive", true, a.Provider.Name())
			}

			if ok {
				f.Success("All prerequisites met. Ready to join!")
			} else {
				f.Warning("Some prerequisites are missing.")
			}
			return nil
		},
	}
}
