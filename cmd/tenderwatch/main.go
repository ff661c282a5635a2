package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tenderwatch/internal"
	"tenderwatch/internal/api"
	"tenderwatch/internal/config"
	"tenderwatch/internal/export"
	"tenderwatch/internal/monitor"
	"tenderwatch/internal/progress"
	"tenderwatch/internal/query"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	svc := query.NewService(cfg)

	cmd := os.Args[1]
	switch cmd {
	case "health":
		out := svc.Health(ctx)
		must(out.Err)
		fmt.Printf("backend %s version=%s\n", out.Data.Status, out.Data.Version)
	case "tenders:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		search := fs.String("search", "", "full-text search")
		status := fs.String("status", "", "PENDING|LISTED|ANALYZED|ERROR")
		dateFrom := fs.String("from", "", "scraped from date YYYY-MM-DD")
		dateTo := fs.String("to", "", "scraped to date YYYY-MM-DD")
		page := fs.Int("page", 1, "page number")
		perPage := fs.Int("perPage", cfg.ListPerPage, "page size")
		_ = fs.Parse(os.Args[2:])
		out := svc.Tenders(ctx, api.ListParams{
			Query:    *search,
			Status:   strings.ToUpper(*status),
			DateFrom: *dateFrom,
			DateTo:   *dateTo,
			Page:     *page,
			PerPage:  *perPage,
		})
		must(out.Err)
		monitor.RenderTenderList(os.Stdout, out.Data)
	case "tenders:show":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "tender id")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		out := svc.Tender(ctx, *id)
		must(out.Err)
		monitor.RenderTenderDetail(os.Stdout, out.Data)
	case "tenders:analyze":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "tender id")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		tender, err := runAnalysis(ctx, cfg, svc, *id)
		must(err)
		fmt.Println()
		monitor.RenderTenderDetail(os.Stdout, tender)
	case "tenders:ask":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "tender id")
		question := fs.String("q", "", "question about the tender documents")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" || strings.TrimSpace(*question) == "" {
			must(fmt.Errorf("--id and --q are required"))
		}
		out := svc.Ask(ctx, *id, *question)
		must(out.Err)
		fmt.Println(out.Data.Answer)
		for _, c := range out.Data.Citations {
			ref := c.Document
			if c.Section != nil {
				ref += " " + *c.Section
			}
			if c.Page != nil {
				ref += fmt.Sprintf(" p.%d", *c.Page)
			}
			fmt.Printf("  source: %s\n", ref)
		}
	case "scraper:run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		from := fs.String("from", "", "start date YYYY-MM-DD")
		to := fs.String("to", "", "end date YYYY-MM-DD")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*from) == "" || strings.TrimSpace(*to) == "" {
			must(fmt.Errorf("--from and --to are required"))
		}
		out := svc.RunScraper(ctx, *from, *to)
		must(out.Err)
		fmt.Printf("scraper started job=%s range=%s\n", out.Data.JobID, out.Data.DateRange)
	case "scraper:stop":
		out := svc.StopScraper(ctx)
		must(out.Err)
		if out.Data.Stopped {
			fmt.Println("scraper stopped")
		} else {
			fmt.Printf("scraper not stopped: %s\n", out.Data.Message)
		}
	case "scraper:status":
		out := svc.ScraperStatus(ctx)
		must(out.Err)
		st := out.Data
		if st.IsRunning {
			fmt.Printf("running phase=%s downloaded=%d/%d failed=%d\n", st.CurrentPhase, st.Downloaded, st.TotalTenders, st.Failed)
		} else {
			lastRun := "never"
			if st.LastRun != nil {
				lastRun = *st.LastRun
			}
			fmt.Printf("idle last_run=%s\n", lastRun)
		}
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		search := fs.String("search", "", "full-text search")
		status := fs.String("status", "", "PENDING|LISTED|ANALYZED|ERROR")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		path := *out
		if strings.TrimSpace(path) == "" {
			path = filepath.Join(cfg.OutputDir, fmt.Sprintf("tenders_%s.xlsx", time.Now().Format("20060102_150405")))
		}
		tenders, err := fetchAllTenders(ctx, cfg, svc, *search, strings.ToUpper(*status))
		must(err)
		if len(tenders) == 0 {
			must(fmt.Errorf("no tenders matched"))
		}
		must(export.ExportTendersToXLSX(tenders, path))
		fmt.Printf("exported %d tenders to %s\n", len(tenders), path)
	case "watch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		search := fs.String("search", "", "full-text search")
		autoAnalyze := fs.Bool("autoAnalyze", false, "analyze listed tenders automatically")
		_ = fs.Parse(os.Args[2:])
		params := api.ListParams{Query: *search, Page: 1, PerPage: cfg.ListPerPage}
		m := monitor.New(cfg, svc, os.Stdout, params, *autoAnalyze)
		must(m.Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

// runAnalysis drives one analysis with the same progress reporting the watch
// view uses, printed as a single updating line.
func runAnalysis(ctx context.Context, cfg config.Config, svc *query.Service, id string) (internal.Tender, error) {
	type outcome struct {
		tender internal.Tender
		err    error
	}
	done := make(chan outcome, 1)

	machine := progress.NewMachine(cfg,
		func(ctx context.Context, id string) (internal.Tender, error) {
			out := svc.Analyze(ctx, id)
			if !out.Success {
				return internal.Tender{}, out.Err
			}
			return out.Data, nil
		},
		func(snap progress.Snapshot) {
			if snap.State == progress.StateRequesting || snap.State == progress.StateCompleted {
				fmt.Printf("\r\033[K%3d%% %s", snap.Percent, snap.Message)
			}
		},
		func(_ string, tender internal.Tender, err error) {
			done <- outcome{tender, err}
		},
	)

	if !machine.Start(ctx, id) {
		return internal.Tender{}, fmt.Errorf("analysis already in flight")
	}
	res := <-done
	return res.tender, res.err
}

// fetchAllTenders walks every result page for the export.
func fetchAllTenders(ctx context.Context, cfg config.Config, svc *query.Service, search, status string) ([]internal.Tender, error) {
	var tenders []internal.Tender
	page := 1
	for {
		out := svc.Tenders(ctx, api.ListParams{Query: search, Status: status, Page: page, PerPage: cfg.ListPerPage})
		if !out.Success {
			return nil, out.Err
		}
		tenders = append(tenders, out.Data.Items...)
		if !out.Data.HasNext() {
			return tenders, nil
		}
		page++
	}
}

func usage() {
	fmt.Println("usage: tenderwatch <command>")
	fmt.Println("commands:")
	fmt.Println("  health")
	fmt.Println("  tenders:list [--search=...] [--status=LISTED] [--from=2026-01-01] [--to=2026-01-31] [--page=1] [--perPage=20]")
	fmt.Println("  tenders:show --id=...")
	fmt.Println("  tenders:analyze --id=...")
	fmt.Println("  tenders:ask --id=... --q=\"...\"")
	fmt.Println("  scraper:run --from=2026-01-01 --to=2026-01-31")
	fmt.Println("  scraper:stop")
	fmt.Println("  scraper:status")
	fmt.Println("  export:xlsx [--search=...] [--status=ANALYZED] [--out=./out/tenders.xlsx]")
	fmt.Println("  watch [--search=...] [--autoAnalyze]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
