package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/buker/chatlib/internal/api"
	"github.com/buker/chatlib/internal/tui/shared"
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "List and manage library documents",
	Long: `List and manage the documents in your library. Uploading is done from
the web client.`,
	RunE: runListDocuments,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	RunE:  runListDocuments,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.session.IsAuthenticated() {
			return errLoginRequired
		}
		for _, id := range args {
			if err := a.client.DeleteDocument(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		}
		return nil
	},
}

var documentsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the extracted text of a document",
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
		text, err := a.client.DocumentContent(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		}
		out, err := glamour.Render(text, markdownStyle())
		if err != nil {
			out = text + "\n"
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		fmt.Fprintf(cmd.ErrOrStderr(), "Original file: %s\n", a.client.DocumentPreviewURL(args[0]))
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{documentsCmd, documentsListCmd} {
		cmd.Flags().Bool("all", false, "List every document, not only your own")
	}
	documentsShowCmd.Flags().Bool("raw", false, "Print the text without markdown rendering")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	documentsCmd.AddCommand(documentsShowCmd)
}

func runListDocuments(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	all, _ := cmd.Flags().GetBool("all")
	docs, err := listDocuments(cmd.Context(), a, all)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No documents.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderDocuments(docs))
	return nil
}

// listDocuments returns the signed-in user's documents, or every document
// when all is set.
func listDocuments(ctx context.Context, a *app, all bool) ([]api.Document, error) {
	if !a.session.IsAuthenticated() {
		return nil, errLoginRequired
	}
	if all {
		return a.client.ListAllDocuments(ctx)
	}
	return a.client.ListDocuments(ctx, a.session.UserID())
}

func renderDocuments(docs []api.Document) string {
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, []string{
			d.ID,
			shared.Truncate(d.Name(), 40),
			d.FileType,
			formatSize(d.FileSize),
			strconv.Itoa(d.TotalPages),
			d.Status.String(),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(shared.ColorBorder)).
		Headers("ID", "NAME", "TYPE", "SIZE", "PAGES", "STATUS").
		Rows(rows...).
		Render()
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
