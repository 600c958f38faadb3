package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cadence/internal/app"
	"cadence/pkg/logx"
)

type signalError struct{ sig os.Signal }

func (e signalError) Error() string { return "received " + e.sig.String() }

func stopReason(err error) app.StopReason {
	var se signalError
	switch {
	case err == nil:
		return app.StopAppStop
	case errors.As(err, &se) && se.sig == syscall.SIGTERM:
		return app.StopSIGTERM
	case errors.As(err, &se):
		return app.StopSIGINT
	default:
		return app.StopFatalError
	}
}

func runCmd() *cobra.Command {
	var statusEvery time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the host loop until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cfgPath)
			if err != nil {
				return err
			}
			if err := a.Start(context.Background()); err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				defer signal.Stop(sigCh)
				select {
				case <-gctx.Done():
					return nil
				case sig := <-sigCh:
					return signalError{sig: sig}
				}
			})
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return nil
				case <-a.Done():
					if err := a.Err(); err != nil {
						return err
					}
					return errors.New("app stopped")
				}
			})
			if statusEvery > 0 {
				g.Go(func() error { return reportStatus(gctx, a, statusEvery) })
			}

			runErr := g.Wait()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.Stop(stopCtx, stopReason(runErr))
			var se signalError
			if errors.As(runErr, &se) {
				return nil
			}
			return runErr
		},
	}
	cmd.Flags().DurationVar(&statusEvery, "status-every", time.Minute, "log a scheduler status line at this interval (0 disables)")
	return cmd
}

func reportStatus(ctx context.Context, a *app.App, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			snap := a.Snapshot()
			active := make([]string, 0, len(snap.Active))
			for _, b := range snap.Active {
				active = append(active, b.Name)
			}
			a.Logger().Info("status",
				logx.Bool("enabled", snap.Enabled),
				logx.Uint64("tick", snap.Tick),
				logx.Strings("active", active),
				logx.Int("pending", len(snap.Pending)),
				logx.Uint64("admitted", snap.Counters.Admitted),
				logx.Uint64("blocked", snap.Counters.Blocked),
				logx.Uint64("failed", snap.Counters.Failed),
				logx.Uint64("overruns", a.Loop().Overruns()),
			)
		}
	}
}
