package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newRegisterCmd() *cobra.Command {
	var name, email, secret string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new player account",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.Register(cmd.Context(), name, email, secret)
			if err != nil {
				return err
			}
			return saveSession(cmd, result)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&secret, "secret", "", "Secret, at least 8 characters (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("secret")

	return cmd
}

func newLoginCmd() *cobra.Command {
	var name, email, secret string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" && email == "" {
				return errors.New("one of --name or --email is required")
			}

			result, err := client.Login(cmd.Context(), name, email, secret)
			if err != nil {
				return err
			}
			return saveSession(cmd, result)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&secret, "secret", "", "Secret (required)")
	cmd.MarkFlagsMutuallyExclusive("name", "email")
	_ = cmd.MarkFlagRequired("secret")

	return cmd
}

func newMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged in player",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.Me(cmd.Context())
			if err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newPlayerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "player <id>",
		Short: "Show a player's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.GetPlayer(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

// saveSession stores the new token and prints the session
func saveSession(cmd *cobra.Command, result AuthResult) error {
	if err := cfg.SaveToken(result.Token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	client.SetToken(result.Token)

	NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
	return nil
}
