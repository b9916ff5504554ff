// Command microsafety runs the heat and fog micro-safety dashboard: the HTTP
// API over the live feed, plus a few operator tools.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "microsafety"

// globalFlags override the environment for every subcommand.
type globalFlags struct {
	logLevel    string
	logFormat   string
	transport   string
	feedURL     string
	upstreamURL string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "microsafety - live heat and fog risk dashboard",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	pf.StringVar(&flags.logFormat, "log-format", "", "json or console (overrides LOG_FORMAT)")
	pf.StringVar(&flags.transport, "transport", "", "feed transport: ws, kafka or pubsub (overrides FEED_TRANSPORT)")
	pf.StringVar(&flags.feedURL, "feed-url", "", "live feed URL (overrides FEED_URL)")
	pf.StringVar(&flags.upstreamURL, "upstream-url", "", "feed origin REST base URL (overrides UPSTREAM_BASE_URL)")

	root.AddCommand(
		newServeCmd(flags),
		newWatchCmd(flags),
		newProfileCmd(flags),
		newScenarioCmd(flags),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
