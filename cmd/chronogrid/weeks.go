package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chronogrid/internal/datewindow"
	appLog "chronogrid/internal/log"
	"chronogrid/internal/model"
	"chronogrid/internal/textgrid"
	"chronogrid/internal/virtual"
)

var (
	weeksFrom  string
	weeksCount int
	weeksWidth int
)

var weeksCmd = &cobra.Command{
	Use:   "weeks",
	Short: "Print weeks of the grid to the terminal",
	Args:  cobra.NoArgs,
	RunE:  runWeeks,
}

func init() {
	rootCmd.AddCommand(weeksCmd)
	weeksCmd.Flags().StringVar(&weeksFrom, "from", "", "A day in the first week to print, YYYY-MM-DD (default today)")
	weeksCmd.Flags().IntVar(&weeksCount, "count", 6, "Number of weeks to print")
	weeksCmd.Flags().IntVar(&weeksWidth, "width", 16, "Column width per day")
}

func runWeeks(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if weeksCount <= 0 {
		return fmt.Errorf("--count must be positive")
	}
	loc, err := conf.Location()
	if err != nil {
		return err
	}
	from := model.DateOf(time.Now().In(loc))
	if weeksFrom != "" {
		if from, err = model.ParseDate(weeksFrom); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, conf, from)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			appLog.Error("shutdown failed", err)
		}
	}()

	first := datewindow.StartOfWeek(from, conf.WeekStartDay())
	last := first.AddDays(7*weeksCount - 1)
	region := datewindow.Region{Start: first.In(loc), End: last.AddDays(1).In(loc)}
	if err := a.store.FetchEventsForRange(ctx, region.Start, region.End, false); err != nil {
		appLog.Warn("some events could not be loaded", "err", err)
	}

	w := a.view.Virtualizer().Window()
	start := w.IndexOf(first)
	snap := a.view.Snapshot(virtual.IndexRange{Start: start, End: start + weeksCount})
	fmt.Fprint(cmd.OutOrStdout(), textgrid.Render(snap, textgrid.Options{CellWidth: weeksWidth}))
	return nil
}
