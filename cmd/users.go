package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prism/internal/formatter"
	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/shared"
	"github.com/desertthunder/prism/internal/tasks"
)

func oneOf(flag, value string, allowed ...string) error {
	if value == "" || slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%w: --%s must be one of %v", shared.ErrInvalidFlag, flag, allowed)
}

// UsersList prints users in creation order.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	role, status := cmd.String("role"), cmd.String("status")
	if err := oneOf("role", role, models.RoleAdmin, models.RoleUser); err != nil {
		return err
	}
	if err := oneOf("status", status, models.StatusActive, models.StatusDisabled); err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	catalog, err := r.Catalog()
	if err != nil {
		return err
	}
	users, err := catalog.ListUsers(role, status)
	if err != nil {
		return err
	}
	return formatter.WriteUsers(r.output, format, users)
}

// UsersAdd creates a user, or updates the role and provider of an existing one.
func (r *Runner) UsersAdd(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	role, provider := cmd.String("role"), cmd.String("provider")
	if err := oneOf("role", role, models.RoleAdmin, models.RoleUser); err != nil {
		return err
	}
	if err := oneOf("provider", provider, models.ProviderBasic, models.ProviderGoogle); err != nil {
		return err
	}

	catalog, err := r.Catalog()
	if err != nil {
		return err
	}
	u, err := catalog.EnsureUser(tasks.UserSpec{
		ID:           id,
		AuthProvider: provider,
		Role:         role,
		ForceRole:    role != "",
	})
	if err != nil {
		return err
	}
	r.writePlain("✓ User %s (#%d, %s, %s) rates as %s\n", u.ID(), u.Sequence(), u.Role(), u.AuthProvider(), u.RatingKey())
	return nil
}

// UsersDisable keeps a user and their ratings but stops them from rating.
func (r *Runner) UsersDisable(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}
	if err := catalog.DisableUser(id); err != nil {
		return err
	}
	r.writePlain("✓ User %s disabled\n", id)
	return nil
}

// UsersDelete removes a user together with their ratings.
func (r *Runner) UsersDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}
	removed, err := catalog.DeleteUser(id, r.config.Admin.User, cmd.String("as"))
	if err != nil {
		return err
	}
	r.writePlain("✓ User %s deleted with %d ratings\n", id, removed)
	return nil
}
