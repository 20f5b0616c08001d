package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func loginCmd(flags *globalFlags) *cobra.Command {
	var save string

	cmd := &cobra.Command{
		Use:   "login <kind> <username> <password>",
		Short: "Authenticate and print an access token",
		Long: `Authenticate against /auth/<kind> (for example "operator") and print
the returned token. With --save the token is written into a config file.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cfg, err := newAPI(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			tok, err := a.Login(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}

			green := color.New(color.FgGreen)
			green.Println("Login successful")
			fmt.Printf("  Token:   %s\n", tok.Raw)
			if tok.Subject != "" {
				fmt.Printf("  Subject: %s\n", tok.Subject)
			}
			if !tok.ExpiresAt.IsZero() {
				fmt.Printf("  Expires: %s (in %s)\n",
					tok.ExpiresAt.Format(time.RFC3339),
					time.Until(tok.ExpiresAt).Round(time.Second))
			}

			if save != "" {
				cfg.Token = tok.Raw
				if err := cfg.Save(save); err != nil {
					return err
				}
				fmt.Printf("  Saved:   %s\n", save)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&save, "save", "", "write the resolved config with the new token to this file")

	return cmd
}
