package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alcove-ai/alcove/internal/answer"
	"github.com/alcove-ai/alcove/internal/app"
)

var liveSearch bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&liveSearch, "live", false, "always ground answers with live web search")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !cmd.Flags().Changed("live") {
		if v, err := a.Store.Preference(ctx, "chat", "live_search"); err == nil {
			liveSearch = v == "on"
		}
	}

	fmt.Printf("alcove ready (%d chunks indexed). Type a question, /new for a fresh conversation, /quit to exit.\n\n", a.Index.Len())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit", line == "/exit":
			return nil
		case line == "/new":
			if err := a.State.Clear(); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			fmt.Println("Started a new conversation.")
			continue
		case line == "/live":
			liveSearch = !liveSearch
			val := "off"
			if liveSearch {
				val = "on"
			}
			if err := a.Store.SetPreference(ctx, "chat", "live_search", val); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			fmt.Printf("Live web search %s.\n", val)
			continue
		}

		if err := streamAnswer(ctx, a, line); err != nil {
			if errors.Is(err, app.ErrBusy) {
				fmt.Fprintln(os.Stderr, "Still answering the previous question.")
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

// streamAnswer runs one turn, rendering snapshots as they arrive. Each
// snapshot carries the full text so far, so only the unprinted suffix is
// written.
func streamAnswer(ctx context.Context, a *app.App, query string) error {
	return streamAnswerInSession(ctx, a, query, "")
}

func streamAnswerInSession(ctx context.Context, a *app.App, query, sessionID string) error {
	printed := 0
	sess, err := a.Query(ctx, query, app.QueryOptions{
		SessionID:  sessionID,
		LiveSearch: liveSearch,
		OnSnapshot: func(snap answer.Snapshot) {
			if len(snap.Text) > printed {
				fmt.Print(snap.Text[printed:])
				printed = len(snap.Text)
			}
		},
	})
	if err != nil {
		return err
	}

	fmt.Println()
	last := sess.Messages[len(sess.Messages)-1]
	if len(last.Sources) > 0 {
		fmt.Printf("  sources: %s\n", strings.Join(last.Sources, ", "))
	}
	if len(last.GroundingSources) > 0 {
		cites := make([]string, 0, len(last.GroundingSources))
		for _, g := range last.GroundingSources {
			cites = append(cites, fmt.Sprintf("%s (%s)", g.Title, g.URL))
		}
		fmt.Printf("  web: %s\n", strings.Join(cites, ", "))
	}
	fmt.Println()
	return nil
}
