package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prism/internal/services"
)

// AuthLogin discards any cached token and runs the browser consent flow.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	creds, err := r.Credentials()
	if err != nil {
		return err
	}

	ts, err := creds.Reauthorize(ctx)
	if err != nil {
		return err
	}
	tok, err := ts.Token()
	if err != nil {
		return err
	}

	r.logger.Info("authorization complete", "expires", tok.Expiry)
	return r.writePlain("✓ Authorized. Token saved to %s\n", r.config.Credentials.YouTube.TokenFile)
}

// AuthStatus reports the cached token state without contacting Google.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	creds, err := r.Credentials()
	if err != nil {
		return err
	}

	state, tok, err := creds.State()
	if err != nil {
		r.logger.Warn("token cache unreadable", "err", err)
	}

	r.writePlain("Token file: %s\n", r.config.Credentials.YouTube.TokenFile)
	r.writePlain("State: %s\n", state)
	if tok != nil && !tok.Expiry.IsZero() {
		r.writePlain("Expires: %s\n", tok.Expiry.Local().Format("2006-01-02 15:04:05"))
	}

	switch state {
	case services.StateValid:
		return r.writePlain("✓ Authorized\n")
	case services.StateExpired:
		return r.writePlain("✓ Authorized (access token will be refreshed on next use)\n")
	default:
		return r.writePlain("✗ Not authorized. Run 'prism auth login'\n")
	}
}

// AuthLogout deletes the cached token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	logout := services.NewTokenCache(r.config.Credentials.YouTube.TokenFile).Clear
	if creds, err := r.Credentials(); err == nil {
		logout = creds.Logout
	}
	if err := logout(); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return r.writePlain("✓ Logged out\n")
}
