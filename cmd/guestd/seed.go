package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"guest-visits-backend/internal/access"
	"guest-visits-backend/internal/db"
	"guest-visits-backend/internal/model"
	"guest-visits-backend/internal/store"
)

var (
	seedPolicyFile string
	seedAdmin      string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the permission catalog and roles into the database",
	Long: `Upserts every permission code and the roles of the policy file (or the
built-in user and guard roles), and optionally creates an administrator.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		policy := access.DefaultPolicy()
		if seedPolicyFile != "" {
			var err error
			if policy, err = access.LoadPolicy(seedPolicyFile); err != nil {
				return err
			}
		}

		gormDB, err := db.Init(&cfg.Database, cfg.Server.SlogLevel())
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if sqlDB, err := gormDB.DB(); err == nil {
			defer sqlDB.Close()
		}

		return seed(cmd.Context(), store.NewGormStore(gormDB), policy, seedAdmin)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPolicyFile, "policy", "", "role policy YAML file (default: built-in roles)")
	seedCmd.Flags().StringVar(&seedAdmin, "admin", "", "create an administrator with this username if missing")
}

func seed(ctx context.Context, st store.Store, policy *access.Policy, admin string) error {
	return st.Transaction(ctx, func(tx store.Store) error {
		perms := make([]model.Permission, 0, len(access.All()))
		for _, c := range access.All() {
			perms = append(perms, model.Permission{Code: string(c), Description: access.Describe(c)})
		}
		if err := tx.UpsertPermissions(ctx, perms); err != nil {
			return fmt.Errorf("failed to upsert permission catalog: %w", err)
		}

		for _, rp := range policy.Roles {
			codes := make([]string, len(rp.Codes))
			for i, c := range rp.Codes {
				codes[i] = string(c)
			}
			role, err := tx.UpsertRole(ctx, model.Role{
				Name:          rp.Name,
				Description:   rp.Description,
				InterfaceType: rp.InterfaceType,
			}, codes)
			if err != nil {
				return err
			}
			slog.Info("role seeded", "role", role.Name, "permissions", len(codes))
		}

		if admin == "" {
			return nil
		}
		_, err := tx.GetUserByUsername(ctx, admin)
		if err == nil {
			slog.Info("administrator already exists", "username", admin)
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		u := &model.User{Username: admin, FullName: admin, IsAdmin: true, IsActive: true}
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		slog.Info("administrator created", "username", admin, "id", u.ID)
		return nil
	})
}
