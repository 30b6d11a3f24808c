package cli

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/08351ty/Google-Meet-Bot/internal/browser"
	"github.com/08351ty/Google-Meet-Bot/internal/output"
)

func NewSetupCmd(deps *Dependencies) *cobra.Command {
	var launch bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Prepare Chrome for remote debugging",
		Long: "Show how to start Chrome with remote debugging and check that the debug endpoint answers.\n" +
			"Sign in to Google in that Chrome window once; the profile is reused for every call.",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			cfg := deps.Config

			chromePath := cfg.ChromePath
			if chromePath == "" {
				chromePath = browser.DefaultChromePath(runtime.GOOS)
			}
			userDataDir := cfg.ChromeUserDataDir
			if userDataDir == "" {
				userDataDir = browser.DefaultUserDataDir(cfg.DataDir)
			}
			_, port, err := net.SplitHostPort(cfg.ChromeDebugAddr)
			if err != nil {
				return err
			}

			formatter.SetupCheck("Chrome path", true, chromePath)
			formatter.SetupCheck("User data dir", true, userDataDir)
			formatter.SetupCheck("Debug address", true, cfg.ChromeDebugAddr)

			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			v, err := deps.App.Browser.Version(ctx)
			cancel()
			if err == nil {
				formatter.SetupCheck("Debug endpoint", true, v.Browser)
				formatter.Success("Chrome is ready. Make sure it is signed in to Google, then run: meetbot join <url>")
				return nil
			}

			formatter.SetupCheck("Debug endpoint", false, "not reachable")
			if !launch {
				formatter.Info("Start Chrome with:")
				formatter.Plain("", "  "+browser.LaunchCommand(chromePath, port, userDataDir), "")
				formatter.Info("Or run: meetbot setup --launch")
				return nil
			}

			c := exec.Command(chromePath, "--remote-debugging-port="+port, "--user-data-dir="+userDataDir)
			if err := c.Start(); err != nil {
				return fmt.Errorf("launching chrome: %w", err)
			}
			pid := c.Process.Pid
			_ = c.Process.Release()
			formatter.Success(fmt.Sprintf("Chrome started (pid %d). Sign in to Google in the new window.", pid))
			return nil
		},
	}

	cmd.Flags().BoolVar(&launch, "launch", false, "Start Chrome with remote debugging if it is not running")

	return cmd
}
