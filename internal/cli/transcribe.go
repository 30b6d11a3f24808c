package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/08351ty/Google-Meet-Bot/internal/output"
)

func NewTranscribeCmd(deps *Dependencies) *cobra.Command {
	var outDir string
	var summarize bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an existing recording",
		Long:  "Transcribe a recording with Mistral Voxtral and optionally summarize it with Claude.\nThe transcript is written next to the audio file unless --out is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			audioPath := args[0]
			if _, err := os.Stat(audioPath); err != nil {
				return fmt.Errorf("reading audio file: %w", err)
			}
			dir := outDir
			if dir == "" {
				dir = filepath.Dir(audioPath)
			}

			formatter.Transcribing()
			result, err := deps.App.Transcribe.Execute(cmd.Context(), audioPath, dir)
			if err != nil {
				return err
			}
			formatter.TranscribeDone(result.Path)

			if summarize || deps.Config.Summarize {
				formatter.Summarizing()
				path, err := deps.App.Summarize.Execute(cmd.Context(), result.Text, dir)
				if err != nil {
					return err
				}
				formatter.SummarizeDone(path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for transcript.md and summary.md")
	cmd.Flags().BoolVar(&summarize, "summarize", false, "Also generate a summary")

	return cmd
}
