package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Devdrwt/mdsc-live-client/internal/api"
	"github.com/Devdrwt/mdsc-live-client/internal/application"
)

var (
	sessionsCourse  string
	sessionsPage    int
	sessionsPerPage int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List live sessions",
	RunE:  withApp(runSessions),
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsCourse, "course", "", "filter by course id")
	sessionsCmd.Flags().IntVar(&sessionsPage, "page", 1, "page number")
	sessionsCmd.Flags().IntVar(&sessionsPerPage, "per-page", 20, "page size")
}

func runSessions(ctx context.Context, app *application.App, _ []string) error {
	page, err := app.API.ListSessions(ctx, api.ListQuery{
		CourseID: sessionsCourse,
		Page:     sessionsPage,
		PerPage:  sessionsPerPage,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tSCHEDULED\tROOM")
	for _, s := range page.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Title, s.Status,
			s.ScheduledStartAt.Local().Format("2006-01-02 15:04"),
			s.RoomName)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("page %d of %d sessions\n", page.Page, page.Total)
	return nil
}
