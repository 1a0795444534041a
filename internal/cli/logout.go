package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the persisted token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess.Logout()
		// Logout invalidates everything the engine holds.
		engine.Invalidate()
		fmt.Println("Logged out.")
		return nil
	},
}
