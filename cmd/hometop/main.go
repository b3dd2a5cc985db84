package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/hometop/internal/config"
	"github.com/nixlim/hometop/internal/logstore"
	"github.com/nixlim/hometop/internal/query"
	"github.com/nixlim/hometop/internal/stats"
	"github.com/nixlim/hometop/internal/trace"
	"github.com/nixlim/hometop/internal/tui"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file (default "+config.DefaultPath()+")")
	debugFlag := flag.String("debug", "", "Write a fetch/query trace (JSONL) to the specified file path")
	logsURLFlag := flag.String("logs-url", "", "Base URL of the logs backend (overrides config)")
	queryURLFlag := flag.String("query-url", "", "Base URL of the query service (overrides config)")
	flag.Parse()

	var (
		loadResult *config.LoadResult
		err        error
	)
	if *configFlag != "" {
		loadResult, err = config.LoadFrom(*configFlag)
	} else {
		loadResult, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hometop: config error: %v\n", err)
		os.Exit(1)
	}
	cfg := loadResult.Config

	for _, w := range loadResult.Warnings {
		fmt.Fprintf(os.Stderr, "hometop: config warning: %s\n", w)
	}

	if err := cfg.ApplyOverrides(*logsURLFlag, *queryURLFlag); err != nil {
		fmt.Fprintf(os.Stderr, "hometop: %v\n", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hometop: timezone %q: %v\n", cfg.Display.Timezone, err)
		os.Exit(1)
	}

	var tracer trace.Logger = trace.NopLogger{}
	if *debugFlag != "" {
		debugFile, err := os.OpenFile(*debugFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hometop: failed to open debug log %q: %v\n", *debugFlag, err)
			os.Exit(1)
		}
		defer debugFile.Close()
		tracer = trace.NewFileLogger(debugFile)
	}

	logs := logstore.New(cfg.Logs.BaseURL,
		logstore.WithTimeout(cfg.LogsTimeout()),
		logstore.WithLocation(loc),
		logstore.WithTrace(tracer),
	)
	queries := query.New(cfg.Query.BaseURL,
		query.WithTimeout(cfg.QueryTimeout()),
		query.WithLocation(loc),
		query.WithTrace(tracer),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.SetOutput(io.Discard)

	model := tui.NewModel(cfg,
		tui.WithLogSource(logs),
		tui.WithQueryRunner(queries),
		tui.WithStatsProvider(stats.NewCalculator(loc)),
		tui.WithStartView(tui.ViewOverview),
		tui.WithContext(ctx),
		tui.WithOnShutdown(cancel),
	)

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
	)

	go func() {
		select {
		case <-sigCh:
			cancel()
			p.Quit()
		case <-ctx.Done():
			return
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "hometop: %v\n", err)
		os.Exit(1)
	}
}
