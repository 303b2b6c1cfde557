package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
	"github.com/urfave/cli/v3"
)

// EnvPassword supplies the password for login and register when --password is omitted.
const EnvPassword = "FLEETROUTE_PASSWORD"

func password(cmd *cli.Command) (string, error) {
	if p := cmd.String("password"); p != "" {
		return p, nil
	}
	if p := os.Getenv(EnvPassword); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("%w: --password or %s is required", shared.ErrMissingArgument, EnvPassword)
}

// loginHint turns an exhausted session into an actionable message.
func loginHint(err error) error {
	if errors.Is(err, shared.ErrAuthRequired) {
		return fmt.Errorf("%w (run 'fleetroute auth login')", err)
	}
	return err
}

// AuthLogin exchanges credentials for a session and saves it.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	pass, err := password(cmd)
	if err != nil {
		return err
	}
	if err := r.connect(); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	identity, err := r.store.Login(ctx, models.Credentials{Username: cmd.String("username"), Password: pass})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	r.logger.Info("authentication successful", "user", identity.Username)
	return r.writePlain("✓ Logged in as %s\n", identity.DisplayName())
}

// AuthRegister creates an account and logs in with it.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	pass, err := password(cmd)
	if err != nil {
		return err
	}
	if err := r.connect(); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	identity, err := r.store.Register(ctx, models.Registration{
		Email:     cmd.String("email"),
		Username:  cmd.String("username"),
		Password:  pass,
		FirstName: cmd.String("first-name"),
		LastName:  cmd.String("last-name"),
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	return r.writePlain("✓ Registered and logged in as %s\n", identity.DisplayName())
}

// AuthLogout ends the session. Local state is cleared even when the backend is unreachable.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}
	if r.store.Identity() == nil {
		return r.writePlain("Not logged in\n")
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.store.Logout(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

// AuthStatus fetches the current user from the backend.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}
	if r.store.Identity() == nil {
		return r.writePlain("✗ Not logged in\n")
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	identity, err := r.store.Profile(ctx)
	if err != nil {
		return loginHint(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(identity, true)
	}

	r.writePlain("✓ Logged in as %s\n", identity.DisplayName())
	r.writePlain("Username: %s\n", identity.Username)
	r.writePlain("Email: %s\n", identity.Email)
	if len(identity.Roles) > 0 {
		r.writePlain("Roles: %v\n", identity.Roles)
	}
	if token := r.store.Token(); token != nil && !token.Expiry.IsZero() {
		r.writePlain("Token expires: %s\n", token.Expiry.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// AuthRefresh renews the session tokens.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if !r.store.Refresh(ctx) {
		return loginHint(fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrAuthRequired))
	}
	return r.writePlain("✓ Session refreshed\n")
}
