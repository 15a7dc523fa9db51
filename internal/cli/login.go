package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"elsa-fe/internal/auth"
	"elsa-fe/internal/config"
	"elsa-fe/internal/metadata"
)

func newLoginCmd(configPath *string) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			timeout := config.Duration(cfg.API.Timeout, 30*time.Second)

			token, err := metadata.Login(cmd.Context(), cfg.API.BaseURL, email, password, timeout)
			if err != nil {
				return err
			}
			return storeToken(cfg, token)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSignupCmd(configPath *string) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and store its session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			timeout := config.Duration(cfg.API.Timeout, 30*time.Second)

			token, err := metadata.Signup(cmd.Context(), cfg.API.BaseURL, email, password, timeout)
			if err != nil {
				return err
			}
			return storeToken(cfg, token)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store, err := auth.NewTokenStore(cfg.Auth.TokenPath)
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		},
	}
}

func storeToken(cfg config.Config, token string) error {
	store, err := auth.NewTokenStore(cfg.Auth.TokenPath)
	if err != nil {
		return err
	}
	if err := store.Save(token); err != nil {
		return err
	}
	identity, err := auth.ParseIdentity(token, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s.\n", identity.Email)
	return nil
}
