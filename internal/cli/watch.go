package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/syllabus-studio/internal/realtime/progress"
)

var errGaveUp = errors.New("live progress channel gave up reconnecting")

func newWatchCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect to the live progress channel and print its events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log, err := e.logger()
			if err != nil {
				return err
			}
			defer log.Sync()
			sc, err := e.pipelineConfig(log)
			if err != nil {
				return err
			}
			url := e.conf.GetString("progress-url")
			if url == "" {
				return errors.New("no progress url (set --url, SYLLABUS_PROGRESS_URL or PROGRESS_SOCKET_URL)")
			}

			ch := progress.New(log, progress.Config{
				URL:               url,
				ReconnectAttempts: sc.LiveProgress.ReconnectAttempts,
				ReconnectDelay:    sc.LiveProgress.ReconnectDelay,
			})
			out := cmd.OutOrStdout()
			text := e.textOutput()
			ch.OnEvent(func(ev progress.Event, snap progress.Snapshot) {
				if text {
					fmt.Fprintf(out, "%s %-10s %3d%% %s\n", snap.ReceivedAt.Format(time.TimeOnly), ev.Status, snap.Percent, ev.Message)
					return
				}
				_ = writeJSON(out, snap)
			})
			ch.OnStatus(func(snap progress.Snapshot) {
				switch {
				case snap.GaveUp:
					fmt.Fprintln(cmd.ErrOrStderr(), "gave up reconnecting")
				case snap.Connected:
					fmt.Fprintf(cmd.ErrOrStderr(), "connected (socket %s)\n", snap.SocketID)
				default:
					fmt.Fprintln(cmd.ErrOrStderr(), "disconnected")
				}
			})

			if err := ch.Start(ctx); err != nil {
				return err
			}
			defer ch.Stop()

			select {
			case <-ctx.Done():
				return nil
			case <-ch.Done():
				if ch.Snapshot().GaveUp {
					return errGaveUp
				}
				return nil
			}
		},
	}
	cmd.Flags().String("url", "", "Progress socket URL")
	_ = e.conf.BindPFlag("progress-url", cmd.Flags().Lookup("url"))
	_ = e.conf.BindEnv("progress-url", "SYLLABUS_PROGRESS_URL", "PROGRESS_SOCKET_URL")
	return cmd
}
