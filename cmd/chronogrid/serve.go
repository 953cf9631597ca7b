package main

import (
	"github.com/spf13/cobra"

	appLog "chronogrid/internal/log"
	"chronogrid/internal/model"
	"chronogrid/internal/refresh"
	"chronogrid/internal/web"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the grid and its gesture API over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config if set)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if serveListen != "" {
		conf.Listen = serveListen
	}

	a, err := newApp(ctx, conf, model.CalendarDate{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			appLog.Error("shutdown failed", err)
		}
	}()

	if err := a.view.LoadInitial(ctx, conf.Grid.NeighborMonths); err != nil {
		appLog.Error("initial load incomplete", err)
	}

	if a.loader != nil {
		r, err := refresh.New(conf.RefreshCron, a.loader, a.store, refresh.Options{
			Location:  a.loc,
			WeekStart: conf.WeekStartDay(),
			Months:    conf.Grid.NeighborMonths,
		})
		if err != nil {
			return err
		}
		r.Start(ctx)
		defer r.Stop()
	}

	return web.NewServer(conf, a.view, a.backend).Serve(ctx)
}
