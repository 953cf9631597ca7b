package ics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "chronogrid/internal/log"
	"chronogrid/internal/model"
)

// Loader serves events of a set of subscriptions for arbitrary ranges. Feed
// bodies are parsed once and kept for TTL, so scrolling through months
// re-expands cached components instead of refetching.
type Loader struct {
	fetcher *Fetcher
	sources []Source
	loc     *time.Location
	ttl     time.Duration
	now     func() time.Time

	mu     sync.Mutex
	parsed map[string]parsedFeed
}

type parsedFeed struct {
	vevents   []VEvent
	fetchedAt time.Time
}

func NewLoader(fetcher *Fetcher, sources []Source, loc *time.Location, ttl time.Duration) *Loader {
	if loc == nil {
		loc = time.Local
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Loader{
		fetcher: fetcher,
		sources: sources,
		loc:     loc,
		ttl:     ttl,
		now:     time.Now,
		parsed:  make(map[string]parsedFeed),
	}
}

// Sources returns the configured subscriptions.
func (l *Loader) Sources() []Source {
	return l.sources
}

// Invalidate forgets every cached feed.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	clear(l.parsed)
	l.mu.Unlock()
}

// LoadEvents expands every subscription over [start, end). Feeds are read
// concurrently; a failing feed does not hide the others.
func (l *Loader) LoadEvents(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	results := make([][]model.Event, len(l.sources))
	errs := make([]error, len(l.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range l.sources {
		g.Go(func() error {
			vevents, err := l.feed(gctx, src)
			if err != nil {
				errs[i] = fmt.Errorf("source %s: %w", src.ID, err)
				return nil
			}
			evs, err := Expand(vevents, ExpandOptions{Location: l.loc, Start: start, End: end})
			if err != nil {
				errs[i] = fmt.Errorf("source %s: %w", src.ID, err)
				return nil
			}
			results[i] = evs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.Event
	for _, evs := range results {
		out = append(out, evs...)
	}
	return out, errors.Join(errs...)
}

func (l *Loader) feed(ctx context.Context, src Source) ([]VEvent, error) {
	l.mu.Lock()
	cached, ok := l.parsed[src.ID]
	l.mu.Unlock()
	if ok && l.now().Sub(cached.fetchedAt) < l.ttl {
		return cached.vevents, nil
	}

	res, err := l.fetcher.Fetch(ctx, src)
	if err != nil {
		if ok {
			appLog.Warn("ics refresh failed, keeping stale feed", "id", src.ID, "err", err)
			return cached.vevents, nil
		}
		return nil, err
	}
	vevents, err := Parse(src, res.Body)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.parsed[src.ID] = parsedFeed{vevents: vevents, fetchedAt: l.now()}
	l.mu.Unlock()
	return vevents, nil
}
