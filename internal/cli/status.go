package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatiitd/chatterm/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current authentication state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := sess.Bootstrap(cmd.Context(), session.CallbackParams{}); err != nil {
			return fmt.Errorf("bootstrap session: %w", err)
		}

		state, errMsg := sess.Snapshot()
		fmt.Printf("Backend:    %s\n", cfg.APIBaseURL)
		fmt.Printf("Auth state: %s\n", state)
		if errMsg != "" {
			fmt.Printf("Error:      %s\n", errMsg)
		}
		return nil
	},
}
