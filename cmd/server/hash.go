package main

import (
	"bufio"
	"fmt"

	"github.com/phrazzld/tasker-api/internal/service/auth"
	"github.com/spf13/cobra"
)

// newHashPasswordCmd prints bcrypt hashes for seeding users by hand. Each
// argument is hashed; without arguments passwords are read one per line
// from stdin.
func newHashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password [password...]",
		Short: "Print bcrypt hashes of passwords",
		RunE: func(cmd *cobra.Command, args []string) error {
			hasher := auth.NewBcryptHasher(cost)
			out := cmd.OutOrStdout()

			hash := func(password string) error {
				h, err := hasher.Hash(password)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, h)
				return nil
			}

			if len(args) > 0 {
				for _, p := range args {
					if err := hash(p); err != nil {
						return err
					}
				}
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if scanner.Text() == "" {
					continue
				}
				if err := hash(scanner.Text()); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
	cmd.Flags().IntVar(&cost, "cost", 10, "bcrypt cost")
	return cmd
}
