package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/buker/chatlib/internal/chat"
)

var errLoginRequired = errors.New("not signed in, run 'chatlib login' first")

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send one message and print the reply",
	Long: `Send one message and stream the reply to stdout.

The message is taken from the arguments, or from stdin when no arguments
are given. Without --conversation a new conversation is created, titled
after the start of the message.`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringP("conversation", "c", "", "Continue this conversation instead of starting a new one")
}

func runSend(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return errors.Wrap(err, "failed to read message from stdin")
		}
		text = string(data)
	}
	text = strings.TrimRight(text, "\r\n")
	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to send")
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.session.IsAuthenticated() {
		return errLoginRequired
	}
	if id, _ := cmd.Flags().GetString("conversation"); id != "" {
		if err := a.store.SelectConversation(cmd.Context(), id); err != nil {
			return err
		}
	}

	return sendAndPrint(cmd.Context(), a.store, text, cmd.OutOrStdout())
}

// sendAndPrint sends text and writes the reply to out as it streams.
// Cancelling ctx stops the reply and keeps what was printed.
func sendAndPrint(ctx context.Context, store *chat.Store, text string, out io.Writer) error {
	p := newReplyPrinter(store, out)
	unsubscribe := store.Subscribe(p.onEvent)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Send(text)
		store.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		store.Stop()
		<-done
	}
	p.finish()

	if err := store.LastError(); err != nil {
		return err
	}
	return ctx.Err()
}

// replyPrinter writes assistant messages to out incrementally. Messages that
// were already in the transcript when it was created are skipped.
type replyPrinter struct {
	store *chat.Store
	out   io.Writer

	mu      sync.Mutex
	seen    map[string]bool
	current string
	written int
}

func newReplyPrinter(store *chat.Store, out io.Writer) *replyPrinter {
	p := &replyPrinter{store: store, out: out, seen: map[string]bool{}}
	for _, m := range store.Messages() {
		p.seen[m.ID] = true
	}
	return p
}

func (p *replyPrinter) onEvent(ev chat.Event) {
	if ev.Kind != chat.EventMessages {
		return
	}
	p.print(p.store.Messages())
}

func (p *replyPrinter) print(msgs []chat.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if m.Role != chat.RoleAssistant || p.seen[m.ID] {
			continue
		}
		if m.ID != p.current {
			p.endLocked()
			p.current = m.ID
		}
		if len(m.Content) > p.written {
			fmt.Fprint(p.out, m.Content[p.written:])
			p.written = len(m.Content)
		}
	}
}

// endLocked terminates the reply being printed with a newline.
func (p *replyPrinter) endLocked() {
	if p.current == "" {
		return
	}
	if p.written > 0 {
		fmt.Fprintln(p.out)
	}
	p.seen[p.current] = true
	p.current = ""
	p.written = 0
}

// finish flushes the last reply and closes it off.
func (p *replyPrinter) finish() {
	p.print(p.store.Messages())
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLocked()
}
