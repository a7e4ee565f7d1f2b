package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Devdrwt/mdsc-live-client/internal/application"
)

var rootCmd = &cobra.Command{
	Use:   "live-client",
	Short: "Live-session client: login, session lifecycle, room join",
	Long:  `Command-line client for live course sessions. Commands: login, sessions, join, leave, start, end.`,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(leaveCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(endCmd)
}

// Execute runs the root command and returns the error (for main to log.Fatal).
func Execute() error {
	return rootCmd.Execute()
}

// withApp builds a RunE that wires the application and tears it down,
// cancelling the context on SIGINT/SIGTERM.
func withApp(run func(ctx context.Context, app *application.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := application.New(ctx)
		if err != nil {
			return err
		}
		defer app.Close()
		return run(ctx, app, args)
	}
}
