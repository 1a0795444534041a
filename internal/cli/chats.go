package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chatiitd/chatterm/internal/models"
)

var chatsRefresh bool

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List and manage conversations",
	Long: `List conversations, newest first.

The list is answered from the local cache when possible; pass --refresh to
re-fetch it from the backend.

Subcommands:
  new     Create an empty conversation
  delete  Delete a conversation

Examples:
  chatterm chats
  chatterm chats --refresh
  chatterm chats new "Thesis questions"
  chatterm chats delete 7d4c1a`,
	RunE: runChats,
}

var chatsNewCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Create an empty conversation",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChatsNew,
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsDelete,
}

func init() {
	chatsCmd.Flags().BoolVarP(&chatsRefresh, "refresh", "r", false, "re-fetch the list from the backend")

	chatsCmd.AddCommand(chatsNewCmd)
	chatsCmd.AddCommand(chatsDeleteCmd)
}

func runChats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	token, err := requireToken(ctx)
	if err != nil {
		return err
	}

	chats, err := engine.LoadCachedChats()
	if err != nil {
		logger.Warn("cached chat list unavailable", "error", err)
	}
	if chatsRefresh || len(chats) == 0 {
		chats, err = engine.RefreshChats(ctx, token)
		if err != nil {
			return err
		}
	}

	if len(chats) == 0 {
		fmt.Println("No chats yet. Start one with `chatterm chat`.")
		return nil
	}

	renderChatList(chats)
	return nil
}

func runChatsNew(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	token, err := requireToken(ctx)
	if err != nil {
		return err
	}

	title := ""
	if len(args) == 1 {
		title = args[0]
	}

	chat, err := engine.NewChat(ctx, token, title)
	if err != nil {
		return err
	}
	fmt.Printf("Created chat %s (%s)\n", chat.ID, chat.DisplayTitle())
	return nil
}

func runChatsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	token, err := requireToken(ctx)
	if err != nil {
		return err
	}

	if err := engine.DeleteChat(ctx, token, args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted chat %s\n", args[0])
	return nil
}

var (
	chatTitleStyle = lipgloss.NewStyle().Bold(true)
	chatMetaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
)

// renderChatList prints the conversation list, truncated to the terminal
// width when stdout is a terminal.
func renderChatList(chats []models.Chat) {
	width := 100
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w > 20 {
			width = w
		}
	}

	fmt.Printf("Chats (%d):\n\n", len(chats))
	for _, chat := range chats {
		title := chat.DisplayTitle()
		meta := fmt.Sprintf("  %s  %s", chat.ID, chat.CreatedAt.Format("2006-01-02"))
		line := chatTitleStyle.Render(truncate(title, width-len(meta)-2)) + chatMetaStyle.Render(meta)
		fmt.Println(line)
	}
}

// truncate shortens s to at most max characters, never splitting a rune.
func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max-3])) + "..."
}
