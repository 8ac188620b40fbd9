// Interviewdesk transcribes interview recordings in the background and
// post-processes transcripts through an ordered list of LLMs.
//
// Usage:
//
//	interviewdesk serve --config configs/interviewdesk.yaml
//	interviewdesk format transcript.txt
//	interviewdesk match --questions survey/questions.json transcript.txt
//
// @title       interviewdesk API
// @version     0.1.0
// @description Asynchronous transcription jobs and LLM post-processing of interview transcripts.
// @BasePath    /
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "interviewdesk",
		Short:         "Interview transcription and transcript post-processing",
		Long:          "interviewdesk queues audio transcription jobs (whisper.cpp or iFlytek) and formats or question-matches transcripts with LLM fallback.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("config", "", "path to config file (e.g. configs/interviewdesk.yaml)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newFormatCmd())
	cmd.AddCommand(newMatchCmd())
	cmd.AddCommand(newSignCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "interviewdesk %s (commit: %s)\n", Version, Commit)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
