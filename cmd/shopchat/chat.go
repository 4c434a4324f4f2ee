package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/service"
)

const maxLineBytes = 64 * 1024

var resumeTail int

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start or resume a conversation",
	Long: `Start an interactive chat with the assistant.

The current conversation is resumed when there is one; otherwise a new one
is started with the welcome message. Slash commands such as /help, /new,
/login, and /debug work as in the web widget. Type /quit to leave.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().IntVar(&resumeTail, "tail", 6, "Messages to show when resuming a conversation")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, log, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	conversations := service.NewConversationService(a.Registry, log)
	messages := service.NewMessageService(a.Registry, conversations, log)
	out := cmd.OutOrStdout()

	indicator := newTypingIndicator(out)
	events, unsubscribe := messages.Subscribe(sessionID)
	defer unsubscribe()
	go func() {
		for ev := range events {
			if ev.Type == model.StreamEventTyping {
				indicator.Set(ev.Typing)
			}
		}
	}()

	if err := resume(ctx, out, conversations); err != nil {
		return err
	}

	lines := readLines(cmd.InOrStdin())
	for {
		fmt.Fprint(out, promptStyle.Render("> "))

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		indicator.Begin()
		resp, err := messages.Send(ctx, sessionID, &model.SendMessageRequest{Text: line})
		indicator.End()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(out, metaStyle.Render("Lỗi: "+err.Error()))
			continue
		}

		fmt.Fprintln(out)
		for _, msg := range resp.Messages {
			if msg.Role == model.RoleUser {
				continue
			}
			fmt.Fprintln(out, renderMessage(msg))
		}
	}
}

// resume prints the tail of the current conversation, starting one when
// the session has none.
func resume(ctx context.Context, out io.Writer, conversations *service.ConversationService) error {
	list, err := conversations.List(ctx, sessionID)
	if err != nil {
		return err
	}

	var conv *model.Conversation
	if list.CurrentID == "" {
		conv, err = conversations.Create(ctx, sessionID, &model.CreateConversationRequest{})
	} else {
		conv, err = conversations.Get(ctx, sessionID, list.CurrentID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, headingStyle.Render(conv.Title))
	fmt.Fprintln(out)

	tail := conv.Messages
	if resumeTail >= 0 && len(tail) > resumeTail {
		tail = tail[len(tail)-resumeTail:]
	}
	for _, msg := range tail {
		fmt.Fprintln(out, renderMessage(msg))
	}
	return nil
}

// readLines feeds stdin lines to a channel so the chat loop can also watch
// for an interrupt.
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
