package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chronogrid/internal/config"
	"chronogrid/internal/ics"
	appLog "chronogrid/internal/log"
	"chronogrid/internal/model"
	"chronogrid/internal/monthview"
	"chronogrid/internal/persist"
	"chronogrid/internal/store"
	"chronogrid/internal/virtual"
)

// app is everything one grid needs, wired from the config.
type app struct {
	cfg     *config.Config
	loc     *time.Location
	backend persist.Backend
	loader  *ics.Loader
	store   *store.Store
	view    *monthview.View
}

// newApp wires the backend, the subscriptions and the grid. today anchors
// the grid; zero means the current day.
func newApp(ctx context.Context, cfg *config.Config, today model.CalendarDate) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	backend, err := persist.Open(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("open persistence: %w", err)
	}

	var loaders []store.Loader
	var loader *ics.Loader
	if sources := icsSources(cfg); len(sources) > 0 {
		loader = ics.NewLoader(ics.NewFetcher(cfg.CacheDir, nil), sources, loc, 0)
		loaders = append(loaders, loader)
	}
	st := store.New(backend, loc, loaders...)

	g := cfg.Grid
	view := monthview.New(st, monthview.Options{
		Virtual: virtual.Config{
			WeekStart:          cfg.WeekStartDay(),
			Location:           loc,
			Today:              today,
			WeeksPerView:       g.WeeksPerView,
			InitialBufferWeeks: g.InitialBufferWeeks,
			RenderBuffer:       g.RenderBufferWeeks,
			GrowthChunk:        g.GrowthChunkWeeks,
			EdgeRows:           g.EdgeRows,
			NeighborMonths:     g.NeighborMonths,
			DirectionalMonths:  g.DirectionalMonths,
			IdleMonths:         g.IdleMonths,
			BaseContext:        context.WithoutCancel(ctx),
		},
		DragDelay:       cfg.DragDelay(),
		DragThreshold:   cfg.Gesture.DragThresholdPX,
		MaxInlineEvents: g.MaxInlineEvents,
	})

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", loc.String(),
		"week_start", cfg.WeekStart,
		"ics_count", len(cfg.ICS),
		"redis", cfg.Redis.URL != "",
		"refresh", cfg.RefreshCron,
	)
	return &app{cfg: cfg, loc: loc, backend: backend, loader: loader, store: st, view: view}, nil
}

func icsSources(cfg *config.Config) []ics.Source {
	out := make([]ics.Source, 0, len(cfg.ICS))
	for _, c := range cfg.ICS {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			if c.Name != "" {
				id = c.Name
			} else {
				id = c.URL
			}
		}
		out = append(out, ics.Source{ID: id, Name: c.Name, URL: c.URL, Color: c.Color})
	}
	return out
}

// close drains background work and releases the backend.
func (a *app) close() error {
	a.view.Wait()
	if err := a.backend.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close persistence: %w", err)
	}
	return nil
}
