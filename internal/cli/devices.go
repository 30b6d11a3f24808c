package cli

import (
	"github.com/spf13/cobra"

	"github.com/08351ty/Google-Meet-Bot/internal/output"
)

func NewDevicesCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Long:  "List the audio input devices. Recordings use the default device, marked with ★.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(cmd.OutOrStdout())

			devices, err := deps.ListDevices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				f.Warning("No input devices found")
				return nil
			}
			for _, d := range devices {
				f.DeviceListItem(d)
			}
			return nil
		},
	}
}
