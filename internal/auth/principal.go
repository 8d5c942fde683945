package auth

import (
	"context"
	"errors"
	"log/slog"

	"guest-visits-backend/internal/access"
	"guest-visits-backend/internal/apperr"
	"guest-visits-backend/internal/model"
	"guest-visits-backend/internal/store"
)

// UserStore is the read side of account storage.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetRoleGrants(ctx context.Context, roleID string) (*store.RoleGrants, error)
}

// Resolver turns a verified credential into a principal.
type Resolver struct {
	tokens *Tokens
	users  UserStore
	logger *slog.Logger
}

// NewResolver creates a principal resolver.
func NewResolver(tokens *Tokens, users UserStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{tokens: tokens, users: users, logger: logger.With("component", "auth")}
}

// Resolve verifies token and loads the principal it names.
func (r *Resolver) Resolve(ctx context.Context, token string) (access.Principal, error) {
	if token == "" {
		return access.Principal{}, apperr.Unauthorized("missing access token")
	}
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return access.Principal{}, err
	}

	user, err := r.users.GetUser(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return access.Principal{}, apperr.Unauthorized("unknown user")
	} else if err != nil {
		return access.Principal{}, apperr.Internal("load user", err)
	}
	return r.ForUser(ctx, user)
}

// ForUser builds the principal of an already loaded user.
func (r *Resolver) ForUser(ctx context.Context, user *model.User) (access.Principal, error) {
	if !user.IsActive {
		return access.Principal{}, apperr.Unauthorized("user is inactive")
	}

	var (
		roleName string
		granted  []access.Code
	)
	if !user.IsAdmin && user.RoleID != nil {
		grants, err := r.users.GetRoleGrants(ctx, *user.RoleID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			r.logger.Error("user references a missing role", "user", user.ID, "role", *user.RoleID)
		case err != nil:
			return access.Principal{}, apperr.Internal("load role grants", err)
		default:
			roleName = grants.Role.Name
			for _, raw := range grants.Codes {
				code, err := access.ParseCode(raw)
				if err != nil {
					r.logger.Warn("ignoring unknown granted code", "role", roleName, "error", err)
					continue
				}
				granted = append(granted, code)
			}
		}
	}

	return access.NewPrincipal(user.ID, user.Username, user.FullName, user.IsAdmin, user.RoleID, roleName, granted), nil
}
