package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Devdrwt/mdsc-live-client/internal/application"
	"github.com/Devdrwt/mdsc-live-client/internal/authflow"
	"github.com/Devdrwt/mdsc-live-client/internal/conference"
	"github.com/Devdrwt/mdsc-live-client/internal/model"
	"github.com/Devdrwt/mdsc-live-client/internal/player"
)

var joinCheck bool

var joinCmd = &cobra.Command{
	Use:   "join <session-id>",
	Short: "Join a live session",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runJoin),
}

func init() {
	joinCmd.Flags().BoolVar(&joinCheck, "check", false, "preflight only: report reachability and session phase without joining")
}

func runJoin(ctx context.Context, app *application.App, args []string) error {
	sessionID := args[0]
	orch := app.Orchestrator()

	if joinCheck {
		return runJoinCheck(ctx, app, sessionID)
	}

	res, err := orch.Prepare(ctx, sessionID)
	if err != nil {
		return err
	}

	switch res.Phase {
	case player.PhaseNotFound:
		fmt.Println("Session not found.")
		return nil
	case player.PhaseError:
		fmt.Println(res.Message)
		return nil
	case player.PhaseCancelled:
		fmt.Println("This session was cancelled.")
		return nil
	case player.PhaseEnded:
		fmt.Println("This session has ended.")
		return nil
	case player.PhaseScheduledFuture:
		fmt.Printf("Session starts at %s. Waiting room: %s\n",
			res.Session.ScheduledStartAt.Local().Format("2006-01-02 15:04"), res.NavTarget)
		return nil
	case player.PhaseScheduledNow:
		if res.Role == model.RoleModerator {
			fmt.Println("Session is not live yet. Run `live-client start` to open it.")
		} else {
			fmt.Println("Session opens soon. The instructor has not started it yet.")
		}
		return nil
	}

	joined, err := orch.JoinLive(ctx, res.Session)
	if err != nil {
		return err
	}
	if joined.Phase == player.PhaseError {
		fmt.Println(joined.Message)
		return nil
	}

	if joined.BrowserURL != "" {
		fmt.Println("Opening the session in your browser.")
		if err := authflow.OpenBrowser(joined.BrowserURL); err != nil {
			fmt.Printf("Could not open a browser. Join manually: %s\n", joined.BrowserURL)
		}
		return nil
	}

	for _, w := range joined.Warnings {
		fmt.Printf("warning: %s\n", w.Message)
	}
	fmt.Printf("Joined %q as %s. Keys: [m]ute audio, [v]ideo, [s]creen share, [q]uit\n",
		res.Session.Title, res.Role)

	runRoomLoop(ctx, joined.Controller)

	nav, err := orch.Leave(context.Background(), res.Session, joined.Controller)
	if err != nil {
		return err
	}
	fmt.Printf("Left the session. Back to %s\n", nav)
	return nil
}

// runRoomLoop reads single-key commands until quit or cancellation.
func runRoomLoop(ctx context.Context, ctrl *conference.Controller) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ctrl.Done():
			fmt.Println("Connection to the room was lost.")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			switch line {
			case "m":
				muted, err := ctrl.ToggleAudio()
				reportToggle("audio muted", muted, err)
			case "v":
				muted, err := ctrl.ToggleVideo()
				reportToggle("video muted", muted, err)
			case "s":
				if err := ctrl.ToggleScreenShare(ctx); err != nil {
					fmt.Printf("screen share: %v\n", err)
				} else {
					fmt.Printf("screen sharing: %v\n", ctrl.ScreenSharing())
				}
			case "q":
				return
			case "":
			default:
				fmt.Println("keys: m (audio), v (video), s (screen), q (quit)")
			}
		}
	}
}

func reportToggle(label string, state bool, err error) {
	if err != nil {
		fmt.Printf("%s: %v\n", label, err)
		return
	}
	fmt.Printf("%s: %v\n", label, state)
}

func runJoinCheck(ctx context.Context, app *application.App, sessionID string) error {
	if err := app.API.Ping(ctx); err != nil {
		fmt.Printf("backend: unreachable (%v)\n", err)
	} else {
		fmt.Println("backend: ok")
	}
	cams, mics := conference.ProbeDevices()
	fmt.Printf("devices: %d camera(s), %d microphone(s)\n", cams, mics)
	res, err := app.Orchestrator().Prepare(ctx, sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("phase: %s\n", res.Phase)
	if res.Session != nil {
		fmt.Printf("status: %s\nroom: %s\nrole: %s\n", res.Session.Status, res.Session.RoomName, res.Role)
		if parts, err := app.API.SessionParticipants(ctx, sessionID); err == nil {
			present := 0
			for _, p := range parts {
				if p.Present {
					present++
				}
			}
			fmt.Printf("participants: %d present, %d total\n", present, len(parts))
		}
	}
	return nil
}
