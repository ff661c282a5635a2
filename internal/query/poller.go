package query

import (
	"context"
	"sync"
	"time"

	"tenderwatch/internal"
	"tenderwatch/internal/api"
	"tenderwatch/internal/config"
)

// Events are the poller's delivery hooks. A nil hook disables that resource's
// loop.
type Events struct {
	OnHealth        func(Outcome[internal.Health])
	OnTenders       func(Outcome[internal.TenderPage])
	OnScraperStatus func(Outcome[internal.ScraperStatus])
}

// Intervals holds the per-resource cadences.
type Intervals struct {
	Health        time.Duration
	Tenders       time.Duration
	ScraperStatus time.Duration
}

func IntervalsFromConfig(cfg config.Config) Intervals {
	return Intervals{
		Health:        time.Duration(cfg.HealthPollSec) * time.Second,
		Tenders:       time.Duration(cfg.ListPollSec) * time.Second,
		ScraperStatus: time.Duration(cfg.StatusPollSec) * time.Second,
	}
}

// Poller drives the periodic refreshes. The loops are independent; one
// resource failing never stalls the others.
type Poller struct {
	svc        *Service
	listParams api.ListParams
	intervals  Intervals
	events     Events
}

func NewPoller(svc *Service, listParams api.ListParams, intervals Intervals, events Events) *Poller {
	return &Poller{svc: svc, listParams: listParams, intervals: intervals, events: events}
}

// Run blocks until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	var wg sync.WaitGroup

	if p.events.OnHealth != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop(ctx, p.intervals.Health, func() {
				p.events.OnHealth(p.svc.RefreshHealth(ctx))
			})
		}()
	}

	if p.events.OnTenders != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop(ctx, p.intervals.Tenders, func() {
				p.events.OnTenders(p.svc.RefreshTenders(ctx, p.listParams))
			})
		}()
	}

	if p.events.OnScraperStatus != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop(ctx, p.intervals.ScraperStatus, func() {
				p.events.OnScraperStatus(p.svc.RefreshScraperStatus(ctx))
			})
		}()
	}

	wg.Wait()
}

func loop(ctx context.Context, interval time.Duration, tick func()) {
	if interval <= 0 {
		interval = time.Second
	}
	for {
		if ctx.Err() != nil {
			return
		}
		tick()

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
