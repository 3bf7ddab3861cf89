package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/primal-host/primal-site/internal/auth"
	"github.com/spf13/cobra"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for the adminPasswordHash config field",
	Long: `Print a bcrypt hash of the given password. With no argument the
password is read from the first line of standard input.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := ""
		if len(args) == 1 {
			password = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("hash-password: read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
