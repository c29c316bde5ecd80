package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/buker/chatlib/internal/chat"
	"github.com/buker/chatlib/internal/tui"
)

func runChat(cmd *cobra.Command, args []string) error {
	interactive := isTerminal(os.Stdin) && isTerminal(os.Stdout)

	a, err := openApp(cmd, interactive)
	if err != nil {
		return err
	}
	defer a.Close()

	if !interactive {
		return runLines(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	}

	program := tui.NewProgram(cmd.Context(), a.store, a.session, markdownStyle())
	return program.Run(cmd.Context())
}

// runLines sends each non-blank line of in and prints the replies to out.
// A failed reply is reported on errOut and the next line is still sent.
func runLines(ctx context.Context, a *app, in io.Reader, out, errOut io.Writer) error {
	if !a.session.IsAuthenticated() {
		return errLoginRequired
	}
	if err := a.store.FetchConversations(ctx); err != nil {
		log.Warn().Err(err).Msg("could not load conversations")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		err := sendAndPrint(ctx, a.store, line, out)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, chat.ErrAuthRequired) || !a.session.IsAuthenticated():
			return errLoginRequired
		case err != nil:
			fmt.Fprintf(errOut, "error: %v\n", err)
			a.store.ClearError()
		}
	}
	return errors.Wrap(scanner.Err(), "failed to read input")
}
