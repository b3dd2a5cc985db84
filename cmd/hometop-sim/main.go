package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nixlim/hometop/internal/config"
	"github.com/nixlim/hometop/internal/simserver"
	"github.com/nixlim/hometop/internal/simulator"
)

const drainTimeout = 5 * time.Second

func main() {
	configFlag := flag.String("config", "", "Path to config file (default "+config.DefaultPath()+")")
	listenFlag := flag.String("listen", "", "Listen address (overrides config)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	noSeed := flag.Bool("empty", false, "Start with an empty log table")
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("invalid log level %q", *logLevel)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var loadResult *config.LoadResult
	if *configFlag != "" {
		loadResult, err = config.LoadFrom(*configFlag)
	} else {
		loadResult, err = config.Load()
	}
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	for _, w := range loadResult.Warnings {
		logger.Warnf("config warning: %s", w)
	}
	cfg := loadResult.Config.Sim
	if *listenFlag != "" {
		cfg.Listen = *listenFlag
	}

	loc, err := loadResult.Config.Location()
	if err != nil {
		logger.Fatalf("timezone: %v", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	repo, err := simserver.OpenRepo()
	if err != nil {
		logger.Fatalf("opening log table: %v", err)
	}
	defer repo.Close()

	// Each simulation run gets fresh devices so their state starts off.
	var runs atomic.Int64
	generate := func(start time.Time, hours int) ([]simulator.Event, error) {
		sim := simulator.New(seed + runs.Add(1))
		if err := sim.Populate(cfg.Users, cfg.DevicesPerUser); err != nil {
			return nil, err
		}
		return sim.Simulate(start, hours), nil
	}

	if !*noSeed {
		start := time.Now().In(loc).Add(-time.Duration(cfg.DurationHours) * time.Hour).Truncate(time.Minute)
		events, err := generate(start, cfg.DurationHours)
		if err != nil {
			logger.Fatalf("simulating: %v", err)
		}
		n, err := repo.Insert(context.Background(), simserver.RowsFromEvents(events))
		if err != nil {
			logger.Fatalf("storing simulated logs: %v", err)
		}
		logger.WithFields(logrus.Fields{
			"logs":    n,
			"users":   cfg.Users,
			"devices": cfg.Users * cfg.DevicesPerUser,
			"hours":   cfg.DurationHours,
			"seed":    seed,
		}).Info("seeded log table")
	}

	srv := simserver.NewServer(repo,
		simserver.WithGenerator(generate),
		simserver.WithDefaultHours(cfg.DurationHours),
		simserver.WithLogger(logger),
		simserver.WithLocation(loc),
	)

	httpSrv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.Listen).Info("hometop-sim listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	logger.Info("shutting down")
	if err := httpSrv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "hometop-sim: shutdown: %v\n", err)
		os.Exit(1)
	}
}
