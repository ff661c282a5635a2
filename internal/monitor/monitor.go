// Package monitor renders the live dashboard and the tender views.
package monitor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"tenderwatch/internal"
	"tenderwatch/internal/api"
	"tenderwatch/internal/config"
	"tenderwatch/internal/logstream"
	"tenderwatch/internal/progress"
	"tenderwatch/internal/query"
	"tenderwatch/internal/util"
)

const (
	notExtracted = "Not extracted"
	logTailLines = 8
	listRows     = 15
)

// Monitor drives the watch view: it subscribes to the pollers, folds scraper
// logs into one stream and redraws on every update.
type Monitor struct {
	cfg         config.Config
	svc         *query.Service
	out         io.Writer
	logs        *logstream.Aggregator
	machine     *progress.Machine
	listParams  api.ListParams
	autoAnalyze bool

	mu         sync.Mutex
	health     *query.Outcome[internal.Health]
	status     *query.Outcome[internal.ScraperStatus]
	page       *query.Outcome[internal.TenderPage]
	prog       progress.Snapshot
	wasRunning bool
}

func New(cfg config.Config, svc *query.Service, out io.Writer, listParams api.ListParams, autoAnalyze bool) *Monitor {
	m := &Monitor{
		cfg:         cfg,
		svc:         svc,
		out:         out,
		logs:        logstream.NewAggregator(nil),
		listParams:  listParams,
		autoAnalyze: autoAnalyze,
	}
	m.machine = progress.NewMachine(cfg, m.analyze, m.onProgress, m.onAnalyzed)
	return m
}

// Run blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	poller := query.NewPoller(m.svc, m.listParams, query.IntervalsFromConfig(m.cfg), query.Events{
		OnHealth: m.onHealth,
		OnTenders: func(out query.Outcome[internal.TenderPage]) {
			m.onTenders(ctx, out)
		},
		OnScraperStatus: m.onStatus,
	})
	poller.Run(ctx)
	return ctx.Err()
}

func (m *Monitor) analyze(ctx context.Context, id string) (internal.Tender, error) {
	out := m.svc.Analyze(ctx, id)
	if !out.Success {
		return internal.Tender{}, out.Err
	}
	return out.Data, nil
}

func (m *Monitor) onHealth(out query.Outcome[internal.Health]) {
	m.mu.Lock()
	m.health = &out
	m.mu.Unlock()
	m.render()
}

func (m *Monitor) onTenders(ctx context.Context, out query.Outcome[internal.TenderPage]) {
	m.mu.Lock()
	m.page = &out
	m.mu.Unlock()

	if m.autoAnalyze && out.Success {
		for _, tender := range out.Data.Items {
			if m.machine.MaybeAutoStart(ctx, tender) {
				break
			}
		}
	}
	m.render()
}

func (m *Monitor) onStatus(out query.Outcome[internal.ScraperStatus]) {
	m.mu.Lock()
	m.status = &out
	if out.Success {
		// A fresh run restarts the stream; the bootstrap line covers the gap
		// until the server's first log window arrives.
		if out.Data.IsRunning && !m.wasRunning {
			m.logs.Reset(internal.LogEntry{Level: internal.LevelInfo, Message: "Scraper run started"})
		}
		m.wasRunning = out.Data.IsRunning
	}
	m.mu.Unlock()

	if out.Success {
		m.logs.AppendBatch(out.Data.Logs)
	}
	m.render()
}

func (m *Monitor) onProgress(snap progress.Snapshot) {
	m.mu.Lock()
	m.prog = snap
	m.mu.Unlock()
	m.render()
}

func (m *Monitor) onAnalyzed(id string, tender internal.Tender, err error) {
	if err != nil {
		m.logs.Append(internal.LogEntry{Level: internal.LevelError, Message: fmt.Sprintf("Analysis of %s failed: %v", id, err)})
		return
	}
	m.logs.Append(internal.LogEntry{Level: internal.LevelSuccess, Message: fmt.Sprintf("Analysis of %s completed", id)})
}

func (m *Monitor) render() {
	m.mu.Lock()
	health := m.health
	status := m.status
	page := m.page
	prog := m.prog
	m.mu.Unlock()

	var b strings.Builder
	b.WriteString("\033[2J\033[H")
	b.WriteString("tenderwatch monitor\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")

	switch {
	case health == nil:
		b.WriteString("backend: connecting...\n")
	case !health.Success:
		b.WriteString(fmt.Sprintf("backend: OFFLINE (%v)\n", health.Err))
	default:
		b.WriteString(fmt.Sprintf("backend: %s (version %s)\n", health.Data.Status, health.Data.Version))
	}

	if status != nil && status.Success {
		st := status.Data
		if st.IsRunning {
			b.WriteString(fmt.Sprintf("scraper: RUNNING  phase=%s  downloaded=%d/%d  failed=%d  elapsed=%s\n",
				util.OrPlaceholder(st.CurrentPhase, "?"), st.Downloaded, st.TotalTenders, st.Failed, util.FormatElapsed(st.ElapsedSeconds)))
		} else {
			lastRun := "never"
			if st.LastRun != nil {
				lastRun = *st.LastRun
			}
			b.WriteString(fmt.Sprintf("scraper: idle  last run %s\n", lastRun))
		}
	}

	if prog.State == progress.StateRequesting || prog.State == progress.StateCompleted {
		b.WriteString(fmt.Sprintf("analysis %s: %s %d%% %s\n", prog.TenderID, progressBar(prog.Percent), prog.Percent, prog.Message))
	}

	if page != nil {
		if page.Success {
			b.WriteString(fmt.Sprintf("\ntenders: %d total, page %d/%d\n", page.Data.Total, page.Data.Page, page.Data.TotalPages))
			writeTenderRows(&b, page.Data.Items, listRows)
		} else {
			b.WriteString(fmt.Sprintf("\ntenders: unavailable (%v)\n", page.Err))
		}
	}

	if tail := m.logs.Tail(logTailLines); len(tail) > 0 {
		b.WriteString("\nscraper log:\n")
		for _, entry := range tail {
			b.WriteString("  " + formatLogEntry(entry) + "\n")
		}
	}

	fmt.Fprint(m.out, b.String())
}

func progressBar(percent int) string {
	filled := percent / 10
	if filled > 10 {
		filled = 10
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", 10-filled) + "]"
}

func formatLogEntry(entry internal.LogEntry) string {
	if entry.Timestamp == "" {
		return fmt.Sprintf("[%s] %s", entry.Level, entry.Message)
	}
	return fmt.Sprintf("%s [%s] %s", entry.Timestamp, entry.Level, entry.Message)
}

func writeTenderRows(w io.Writer, tenders []internal.Tender, max int) {
	for i, tender := range tenders {
		if i >= max {
			fmt.Fprintf(w, "  ... and %d more\n", len(tenders)-max)
			return
		}
		fmt.Fprintf(w, "  %-14s %-9s %s\n",
			util.Truncate(tenderReference(tender), 14),
			tender.Status,
			util.Truncate(tenderSubject(tender), 50))
	}
}

func tenderReference(t internal.Tender) string {
	if t.AvisMetadata != nil && t.AvisMetadata.ReferenceTender.Present() {
		return *t.AvisMetadata.ReferenceTender.Value
	}
	if t.ExternalReference != nil && *t.ExternalReference != "" {
		return *t.ExternalReference
	}
	return t.ID
}

func tenderSubject(t internal.Tender) string {
	if t.AvisMetadata != nil && t.AvisMetadata.Subject.Present() {
		return *t.AvisMetadata.Subject.Value
	}
	return notExtracted
}

// RenderTenderList writes the table view used by the list subcommand.
func RenderTenderList(w io.Writer, page internal.TenderPage) {
	fmt.Fprintf(w, "%d tenders, page %d/%d\n", page.Total, page.Page, page.TotalPages)
	writeTenderRows(w, page.Items, len(page.Items))
	if page.HasNext() {
		fmt.Fprintf(w, "next: --page %d\n", page.Page+1)
	}
}
