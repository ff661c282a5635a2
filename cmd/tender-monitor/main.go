package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tenderwatch/internal/api"
	"tenderwatch/internal/config"
	"tenderwatch/internal/monitor"
	"tenderwatch/internal/query"
)

func main() {
	cfg, err := config.Load()
	must(err)

	search := flag.String("search", "", "full-text search")
	autoAnalyze := flag.Bool("autoAnalyze", false, "analyze listed tenders automatically")
	flag.Parse()

	svc := query.NewService(cfg)
	params := api.ListParams{Query: *search, Page: 1, PerPage: cfg.ListPerPage}
	m := monitor.New(cfg, svc, os.Stdout, params, *autoAnalyze)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := m.Run(ctx); err != nil && ctx.Err() == nil {
		must(err)
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
