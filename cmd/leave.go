package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Devdrwt/mdsc-live-client/internal/application"
	"github.com/Devdrwt/mdsc-live-client/internal/errs"
)

var leaveCmd = &cobra.Command{
	Use:   "leave <session-id>",
	Short: "Deregister from a session",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runLeave),
}

func runLeave(ctx context.Context, app *application.App, args []string) error {
	err := app.API.LeaveSession(ctx, args[0])
	if errors.Is(err, errs.ErrParticipationNotFound) {
		fmt.Println("No active participation to leave.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Println("Left the session.")
	return nil
}
