package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Devdrwt/mdsc-live-client/internal/application"
	"github.com/Devdrwt/mdsc-live-client/internal/model"
)

var startCmd = &cobra.Command{
	Use:   "start <session-id>",
	Short: "Open a scheduled session (instructor only)",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runStart),
}

var endCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "End a live session (instructor only)",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runEnd),
}

func runStart(ctx context.Context, app *application.App, args []string) error {
	return runTransition(ctx, app, args[0], model.SessionStatusLive, func(ctx context.Context, id string) (*model.Session, error) {
		return app.API.StartSession(ctx, id)
	})
}

func runEnd(ctx context.Context, app *application.App, args []string) error {
	return runTransition(ctx, app, args[0], model.SessionStatusEnded, func(ctx context.Context, id string) (*model.Session, error) {
		return app.API.EndSession(ctx, id)
	})
}

// runTransition checks the move locally before asking the backend, so an
// already-ended or cancelled session fails fast with a clear message.
func runTransition(ctx context.Context, app *application.App, id string, next model.SessionStatus, call func(context.Context, string) (*model.Session, error)) error {
	sess, err := app.API.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if err := sess.Transition(next, time.Now()); err != nil {
		return fmt.Errorf("session is %s and cannot move to %s", sess.Status, next)
	}
	updated, err := call(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Session %q is now %s.\n", updated.Title, updated.Status)
	return nil
}
