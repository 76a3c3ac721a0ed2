package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage conversation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations",
	RunE:  runSessionsList,
}

var sessionsRemoveCmd = &cobra.Command{
	Use:   "rm [session-id]",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsRemove,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Print a conversation's messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsRemoveCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.Sessions.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No saved conversations.")
		return nil
	}

	active, err := a.State.Active()
	if err != nil {
		active = ""
	}

	for _, s := range list {
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		fmt.Printf("%s %s  %-50s %3d messages  %s\n",
			marker, s.ID, s.Title, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runSessionsRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	if err := a.Sessions.Delete(ctx, id); err != nil {
		return err
	}

	// Clear the pointer if it named the deleted session.
	if active, err := a.State.Active(); err == nil && active == id {
		if err := a.State.Clear(); err != nil {
			return err
		}
	}
	fmt.Printf("Deleted session %s\n", id)
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.Sessions.Load(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n\n", sess.Title, sess.ID)
	for _, m := range sess.Messages {
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
		if len(m.Sources) > 0 {
			fmt.Printf("  sources: %v\n", m.Sources)
		}
		for _, g := range m.GroundingSources {
			fmt.Printf("  web: %s (%s)\n", g.Title, g.URL)
		}
		fmt.Println()
	}
	return nil
}
