package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"guest-visits-backend/internal/auth"
	"guest-visits-backend/internal/db"
	"guest-visits-backend/internal/store"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed access token for an existing user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.Secret == "" {
			return errors.New("auth.secret (or SECRET_KEY) must be set")
		}

		gormDB, err := db.Init(&cfg.Database, cfg.Server.SlogLevel())
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if sqlDB, err := gormDB.DB(); err == nil {
			defer sqlDB.Close()
		}

		u, err := store.NewGormStore(gormDB).GetUserByUsername(cmd.Context(), tokenUser)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("user %q does not exist", tokenUser)
		} else if err != nil {
			return err
		}

		tokens := auth.NewTokens(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
		token, err := tokens.Issue(u.ID, u.Username, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "username to issue the token for")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default: auth.token_ttl_minutes)")
	_ = tokenCmd.MarkFlagRequired("user")
}
