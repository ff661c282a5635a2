package query

import (
	"context"
	"time"

	"tenderwatch/internal"
	"tenderwatch/internal/api"
	"tenderwatch/internal/config"
)

// Service owns the cache and the API client; it is constructed once at
// startup and shared by every view. Reads go through the cache, mutations go
// straight to the server and then invalidate the entries they affect.
type Service struct {
	cfg    config.Config
	client *api.Client
	cache  *Cache
}

func NewService(cfg config.Config) *Service {
	return &Service{
		cfg:    cfg,
		client: api.NewClient(cfg),
		cache:  NewCache(),
	}
}

func (s *Service) Health(ctx context.Context) Outcome[internal.Health] {
	ttl := time.Duration(s.cfg.HealthPollSec) * time.Second
	return lookup(ctx, s.cache, healthKey, ttl, s.client.Health)
}

func (s *Service) Tenders(ctx context.Context, params api.ListParams) Outcome[internal.TenderPage] {
	ttl := time.Duration(s.cfg.ListPollSec) * time.Second
	return lookup(ctx, s.cache, tenderListKey(params), ttl, func(ctx context.Context) (internal.TenderPage, error) {
		return s.client.ListTenders(ctx, params)
	})
}

// Tender is fetched once per id and then pinned; only invalidation (after an
// analysis) makes it refetch, and that refetch blocks so the caller never
// sees a stale record as current.
func (s *Service) Tender(ctx context.Context, id string) Outcome[internal.Tender] {
	return lookupBlocking(ctx, s.cache, tenderKey(id), 0, func(ctx context.Context) (internal.Tender, error) {
		return s.client.GetTender(ctx, id)
	})
}

func (s *Service) ScraperStatus(ctx context.Context) Outcome[internal.ScraperStatus] {
	ttl := time.Duration(s.cfg.StatusPollSec) * time.Second
	return lookup(ctx, s.cache, scraperStatusKey, ttl, s.client.ScraperStatus)
}

// Refresh variants bypass freshness; the pollers use them so every tick
// reflects the server, not the cache.

func (s *Service) RefreshHealth(ctx context.Context) Outcome[internal.Health] {
	return refresh(ctx, s.cache, healthKey, s.client.Health)
}

func (s *Service) RefreshTenders(ctx context.Context, params api.ListParams) Outcome[internal.TenderPage] {
	return refresh(ctx, s.cache, tenderListKey(params), func(ctx context.Context) (internal.TenderPage, error) {
		return s.client.ListTenders(ctx, params)
	})
}

func (s *Service) RefreshScraperStatus(ctx context.Context) Outcome[internal.ScraperStatus] {
	return refresh(ctx, s.cache, scraperStatusKey, s.client.ScraperStatus)
}

// RunScraper starts a crawl over a date range and invalidates the scraper
// status so the next poll shows the new job.
func (s *Service) RunScraper(ctx context.Context, startDate, endDate string) Outcome[internal.ScraperRun] {
	run, err := s.client.RunScraper(ctx, startDate, endDate)
	if err != nil {
		return failed[internal.ScraperRun](err)
	}
	s.cache.Invalidate(scraperStatusKey)
	return succeed(run)
}

// StopScraper also invalidates the tender lists: stopping mid-run may leave
// tenders in states the cached pages do not reflect.
func (s *Service) StopScraper(ctx context.Context) Outcome[internal.StopResult] {
	res, err := s.client.StopScraper(ctx)
	if err != nil {
		return failed[internal.StopResult](err)
	}
	s.cache.Invalidate(scraperStatusKey)
	s.cache.InvalidatePrefix(tenderListPrefix)
	return succeed(res)
}

// Analyze triggers phase 2 and returns the updated tender. The detail entry
// and every list page are invalidated: status moved, so aggregate counts did
// too.
func (s *Service) Analyze(ctx context.Context, id string) Outcome[internal.Tender] {
	tender, err := s.client.Analyze(ctx, id)
	if err != nil {
		return failed[internal.Tender](err)
	}
	s.cache.Invalidate(tenderKey(id))
	s.cache.InvalidatePrefix(tenderListPrefix)
	return succeed(tender)
}

// Ask is a read-only side effect; nothing to invalidate.
func (s *Service) Ask(ctx context.Context, id, question string) Outcome[internal.Answer] {
	answer, err := s.client.Ask(ctx, id, question)
	if err != nil {
		return failed[internal.Answer](err)
	}
	return succeed(answer)
}
