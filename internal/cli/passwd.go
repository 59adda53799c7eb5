package cli

import (
	"fmt"

	"daypo-quiz-service/internal/auth"
	"github.com/spf13/cobra"
)

// NewPasswdCmd prints a bcrypt hash for the auth.users section of the config.
func NewPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <password>",
		Short: "Hash a password for the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
