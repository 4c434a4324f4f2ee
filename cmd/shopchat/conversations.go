package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/shop-assistant/internal/service"
)

// conversationsCmd represents the conversations command
var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List saved conversations",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		list, err := service.NewConversationService(a.Registry, log).List(cmd.Context(), sessionID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if list.Total == 0 {
			fmt.Fprintln(out, metaStyle.Render("Chưa có cuộc trò chuyện nào."))
			return nil
		}
		for _, c := range list.Conversations {
			marker := "  "
			if c.ID == list.CurrentID {
				marker = promptStyle.Render("* ")
			}
			fmt.Fprintf(out, "%s%s %s\n", marker, boldStyle.Render(c.Title),
				metaStyle.Render(fmt.Sprintf("%s · %d tin nhắn · %s", c.ID, c.MessageCount, c.UpdatedAt.Local().Format("02/01/2006 15:04"))))
		}
		return nil
	},
}

var showConversationCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Print every message of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		conv, err := service.NewConversationService(a.Registry, log).Get(cmd.Context(), sessionID, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headingStyle.Render(conv.Title))
		fmt.Fprintln(out)
		for _, msg := range conv.Messages {
			fmt.Fprintln(out, renderMessage(msg))
		}
		return nil
	},
}

var selectConversationCmd = &cobra.Command{
	Use:   "select <conversation-id>",
	Short: "Make a conversation current so chat resumes it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		conv, err := service.NewConversationService(a.Registry, log).Select(cmd.Context(), sessionID, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Đã chọn %s\n", boldStyle.Render(conv.Title))
		return nil
	},
}

var deleteConversationCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		return service.NewConversationService(a.Registry, log).Delete(cmd.Context(), sessionID, args[0])
	},
}

var clearConversationsCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every conversation of the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		return service.NewConversationService(a.Registry, log).Clear(cmd.Context(), sessionID)
	},
}

func init() {
	conversationsCmd.AddCommand(showConversationCmd, selectConversationCmd, deleteConversationCmd, clearConversationsCmd)
}
