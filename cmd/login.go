package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Devdrwt/mdsc-live-client/internal/application"
	"github.com/Devdrwt/mdsc-live-client/internal/authflow"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate through the browser",
	RunE:  withApp(runLogin),
}

func runLogin(ctx context.Context, app *application.App, _ []string) error {
	snap := app.Store.Get()
	if snap.AuthToken != "" && snap.User != nil {
		fmt.Printf("Already signed in as %s (%s). Continuing re-authenticates.\n",
			snap.User.DisplayName(), snap.User.Email)
	}

	flow := &authflow.Flow{
		Store:        app.Store,
		IdentityURL:  app.Cfg.IdentityURL,
		CallbackHost: app.Cfg.CallbackHost,
		CallbackPort: app.Cfg.CallbackPort,
		Timeout:      app.Cfg.LoginTimeout,
		Log:          app.Log,
	}
	profile, err := flow.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", profile.DisplayName(), profile.Email)
	return nil
}
