// Command chronogrid serves an interactive week grid over a set of ICS
// subscriptions and locally created events.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chronogrid/internal/config"
	appLog "chronogrid/internal/log"
)

var (
	configPath string
	conf       *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "chronogrid",
	Short:         "Virtualized week/month calendar grid",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		conf = c
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./chronogrid.yaml", "Path to config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		appLog.Error("chronogrid failed", err)
		stop()
		os.Exit(1)
	}
}
