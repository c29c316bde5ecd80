package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/buker/chatlib/internal/api"
	"github.com/buker/chatlib/internal/chat"
	"github.com/buker/chatlib/internal/tui/shared"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"convs"},
	Short:   "List and manage conversations",
	Long: `List and manage conversations. Signed out, the list shows conversations
kept in the local database.`,
	RunE: runListConversations,
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recent first",
	RunE:  runListConversations,
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete conversations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		// Signed out, only the local guest list can be edited.
		remove := a.store.DeleteConversation
		if !a.session.IsAuthenticated() {
			remove = a.db.DeleteGuestConversation
		}
		for _, id := range args {
			if err := remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Print the messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.session.IsAuthenticated() {
			return errLoginRequired
		}
		if err := a.store.SelectConversation(cmd.Context(), args[0]); err != nil {
			return err
		}
		printTranscript(cmd.OutOrStdout(), a.store.Messages())
		return nil
	},
}

func init() {
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
}

func runListConversations(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.FetchConversations(cmd.Context()); err != nil {
		return err
	}
	list := a.store.Conversations()
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No conversations.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderConversations(list))
	return nil
}

// renderConversations lays out the list as a table.
func renderConversations(list []api.ConversationSummary) string {
	rows := make([][]string, 0, len(list))
	for _, c := range list {
		updated := ""
		if t := c.Updated(); !t.IsZero() {
			updated = t.Format("2006-01-02 15:04")
		}
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		rows = append(rows, []string{c.ID, shared.Truncate(title, 40), updated})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(shared.ColorBorder)).
		Headers("ID", "TITLE", "UPDATED").
		Rows(rows...).
		Render()
}

// printTranscript writes msgs as labelled blocks separated by blank lines.
func printTranscript(w io.Writer, msgs []chat.Message) {
	for i, m := range msgs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s:\n%s\n", roleLabel(m.Role), strings.TrimRight(m.Content, "\n"))
	}
}

func roleLabel(r chat.Role) string {
	switch r {
	case chat.RoleUser:
		return shared.UserLabel
	case chat.RoleAssistant:
		return shared.AssistantLabel
	default:
		return shared.SystemLabel
	}
}
