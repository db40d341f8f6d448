package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flemzord/stockchat/internal/conversation"
)

const replHelp = `Comandos:
  /new            inicia uma nova conversa
  /history        mostra o histórico da conversa
  /apikey <chave> define a API Key (use /save para enviar)
  /doc <texto>    define a documentação (use /save para enviar)
  /save           salva a configuração no serviço
  /help           mostra esta ajuda
  /quit           sai`

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		RunE: withRuntime(func(cmd *cobra.Command, _ []string, rt *runtime) error {
			return runREPL(cmd, rt.manager, cmd.InOrStdin(), cmd.OutOrStdout())
		}),
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, args []string, rt *runtime) error {
			err := rt.manager.SendMessage(cmd.Context(), strings.Join(args, " "))
			if errors.Is(err, conversation.ErrMissingCredential) || errors.Is(err, conversation.ErrEmptyMessage) {
				return err
			}
			printLastReply(cmd.OutOrStdout(), rt.manager)
			return err
		}),
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the persisted conversation",
		RunE: withRuntime(func(cmd *cobra.Command, _ []string, rt *runtime) error {
			if len(rt.manager.Messages()) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nenhuma mensagem.")
				return nil
			}
			return rt.manager.Transcript(cmd.OutOrStdout())
		}),
	}
}

func newCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Clear the conversation and start a new session",
		RunE: withRuntime(func(cmd *cobra.Command, _ []string, rt *runtime) error {
			rt.manager.StartNewConversation(cmd.Context())
			return nil
		}),
	}
}

// runREPL reads lines from in until EOF, /quit or cancellation of the
// command's context. Failures are reported through notifications and never
// end the loop.
func runREPL(cmd *cobra.Command, mgr *conversation.Manager, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	fmt.Fprintln(out, "Assistente de estoque. Digite /help para ver os comandos.")
	if len(mgr.Messages()) > 0 {
		fmt.Fprintln(out)
		if err := mgr.Transcript(out); err != nil {
			return err
		}
	}

	lines, scanErr := readLines(ctx, in)
	for {
		fmt.Fprint(out, "\n> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return <-scanErr
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			if err := mgr.SendMessage(ctx, line); err == nil || !errors.Is(err, conversation.ErrMissingCredential) {
				printLastReply(out, mgr)
			}
			continue
		}

		name, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch name {
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, replHelp)
		case "/new":
			mgr.StartNewConversation(ctx)
		case "/history":
			if err := mgr.Transcript(out); err != nil {
				return err
			}
		case "/apikey":
			mgr.SetCredential(arg)
		case "/doc":
			mgr.SetDocumentation(arg)
		case "/save":
			_ = mgr.SaveConfiguration(ctx)
		default:
			fmt.Fprintf(out, "Comando desconhecido: %s\n", name)
		}
	}
}

// readLines scans in on its own goroutine so a blocked read never delays
// shutdown. The error channel receives exactly one value before lines is
// closed.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		var err error
		defer func() {
			scanErr <- err
			close(lines)
		}()

		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		err = scanner.Err()
	}()
	return lines, scanErr
}

// printLastReply prints the newest message when it came from the assistant.
func printLastReply(w io.Writer, mgr *conversation.Manager) {
	msgs := mgr.Messages()
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role != conversation.RoleSystem {
		return
	}
	fmt.Fprintf(w, "assistente> %s\n", last.Content)
}
