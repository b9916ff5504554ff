package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/microsafety/microsafety/internal/display"
	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/risk"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var (
		asJSON bool
		count  int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream feed snapshots and connectivity to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			log := newLogger(cfg, os.Stderr)

			dialer, closer, err := newDialer(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closer.Close()

			client := feed.NewClient(feed.ClientConfig{
				Dialer:         dialer,
				Logger:         log,
				ReconnectDelay: cfg.Feed.ReconnectDelay,
			})
			return watch(cmd.Context(), client, cmd.OutOrStdout(), asJSON, count)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print each state as a JSON line")
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many snapshots (0 = run until interrupted)")
	return cmd
}

// feedRunner is the part of feed.Client that watch drives.
type feedRunner interface {
	Run(ctx context.Context) error
	Subscribe() (<-chan feed.State, func())
}

// watch prints every state change until ctx is done or count snapshots
// have been printed.
func watch(ctx context.Context, client feedRunner, out io.Writer, asJSON bool, count int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, unsubscribe := client.Subscribe()
	defer unsubscribe()

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()

	enc := json.NewEncoder(out)
	var lastTick int64 = -1
	seen := 0

	for {
		select {
		case err := <-runErr:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err

		case st, ok := <-updates:
			if !ok {
				return nil
			}
			if asJSON {
				if err := enc.Encode(st); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, describeState(st))
			}

			if st.Snapshot != nil && st.Snapshot.Tick != lastTick {
				lastTick = st.Snapshot.Tick
				seen++
				if count > 0 && seen >= count {
					return nil
				}
			}
		}
	}
}

// describeState renders one state as a single human-readable line.
func describeState(st feed.State) string {
	if st.Snapshot == nil {
		return fmt.Sprintf("[%s] waiting for first snapshot", st.Conn)
	}

	snap := st.Snapshot
	line := fmt.Sprintf("[%s] tick=%d scenario=%s risks=%d alerts=%d",
		st.Conn, snap.Tick, snap.Scenario, len(snap.Risks), len(snap.Alerts))

	if top := risk.TopRisks(snap.Risks, 1); len(top) > 0 {
		line += fmt.Sprintf(" top=%q(%.1f %s)", top[0].Name, top[0].CombinedRisk, top[0].RiskLevel)
	}
	if b, ok := display.EmergencyBanner(snap.Alerts); ok {
		line += " banner=" + fmt.Sprintf("%q", b.Text)
	}
	return line
}
