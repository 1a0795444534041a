package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chatiitd/chatterm/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat [id]",
	Short: "Open an interactive conversation",
	Long: `Open an interactive conversation with the assistant.

With an id, the existing conversation is loaded. Without one, a new
conversation is created from your first message.

Examples:
  chatterm chat
  chatterm chat 7d4c1a`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	token, err := requireToken(ctx)
	if err != nil {
		return err
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("interactive chat needs a terminal; use `chatterm chats` for scripted access")
	}

	if len(args) == 1 {
		if err := engine.SetActive(ctx, token, args[0]); err != nil {
			return err
		}
	}

	if err := tui.Run(engine, token); err != nil {
		return fmt.Errorf("chat UI: %w", err)
	}

	for _, snap := range stats.Snapshot() {
		logger.Debug("backend request stats",
			"operation", snap.Operation,
			"count", snap.Count,
			"failures", snap.Failures,
			"avg_ms", snap.AvgTimeMs,
		)
	}
	return nil
}
