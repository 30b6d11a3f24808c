package cli

import (
	"github.com/spf13/cobra"

	"github.com/08351ty/Google-Meet-Bot/internal/output"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())

			meetings, err := deps.App.History.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(meetings) == 0 {
				formatter.Info("No meetings found")
				return nil
			}

			formatter.MeetingListHeader()
			for _, m := range meetings {
				formatter.MeetingListItem(m)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of meetings to show")

	return cmd
}
