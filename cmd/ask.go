package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var (
	askSessionID  string
	askLiveSearch bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "continue a specific session instead of the active one")
	askCmd.Flags().BoolVar(&askLiveSearch, "live", false, "ground the answer with live web search")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	liveSearch = askLiveSearch
	question := strings.Join(args, " ")

	if askSessionID != "" {
		return streamAnswerInSession(ctx, a, question, askSessionID)
	}
	return streamAnswer(ctx, a, question)
}
