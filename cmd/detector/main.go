// detector consumes device position reports from Kafka, runs them through
// the event detection engine and persists positions, events and per-device
// state. It also serves the ignition reports and a live event stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"fleet-monitor/detector/internal/auth"
	"fleet-monitor/detector/internal/calendar"
	"fleet-monitor/detector/internal/config"
	"fleet-monitor/detector/internal/detect"
	"fleet-monitor/detector/internal/domain"
	"fleet-monitor/detector/internal/ingest"
	"fleet-monitor/detector/internal/observability"
	"fleet-monitor/detector/internal/pipeline"
	"fleet-monitor/detector/internal/report"
	"fleet-monitor/detector/internal/state"
	"fleet-monitor/detector/internal/store"
	httptransport "fleet-monitor/detector/internal/transport/http"
	"fleet-monitor/detector/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var envFile string
	var drainTimeout time.Duration

	flagSet := pflag.NewFlagSet("detector", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file applied before reading the environment")
	flagSet.DurationVar(&drainTimeout, "drain-timeout", 10*time.Second, "how long writers may flush on shutdown")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log := observability.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewTimescaleStore(ctx, cfg.PostgresURL())
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := store.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	geofences := state.NewGeofences()
	calendars := calendar.NewRegistry()
	if err := loadReference(ctx, db, geofences, calendars, log); err != nil {
		return err
	}

	cache := state.NewCache()
	engine := detect.NewEngine(cache, geofences, calendars, cfg.Trips, log)

	dispatcher := pipeline.NewDispatcher(cfg.AnalyzerWorkers, cfg.WorkerChannelSize)
	sinks := pipeline.NewSinks(cfg.PositionChannelSize, cfg.EventChannelSize, cfg.StateChannelSize)

	// Workers and writers outlive ctx so that queued reports drain on
	// shutdown; writeCtx bounds that drain.
	writeCtx, cancelWrites := context.WithCancel(context.Background())
	defer cancelWrites()

	var workers sync.WaitGroup
	for i := 0; i < dispatcher.Workers(); i++ {
		w := pipeline.NewWorker(dispatcher.Worker(i), engine, cache, db, rdb, sinks, cfg.ReferenceRefresh, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			w.Run(writeCtx)
		}()
	}

	publishers := []pipeline.Publisher{rdb}
	if cfg.KafkaEventsTopic != "" {
		kp := pipeline.NewKafkaEventPublisher(cfg.KafkaBrokers, cfg.KafkaEventsTopic)
		defer kp.Close()
		publishers = append(publishers, kp)
	}

	var writers sync.WaitGroup
	goRun := func(wg *sync.WaitGroup, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(writeCtx)
		}()
	}
	goRun(&writers, pipeline.NewBatchWriter[*domain.Position](sinks.PositionChan, "positions", db.BatchInsertPositions, cfg.DBBatchSize, cfg.DBFlushIntervalMS, log).Run)
	goRun(&writers, pipeline.NewBatchWriter[domain.Event](sinks.EventChan, "events", db.BatchInsertEvents, cfg.DBBatchSize, cfg.DBFlushIntervalMS, log).Run)
	goRun(&writers, pipeline.NewStateWriter(sinks.StateChan, pipeline.StateSaverFunc(func(ctx context.Context, u pipeline.StateUpdate) error {
		return rdb.SaveState(ctx, u.Position, u.Debounce)
	}), log).Run)
	goRun(&writers, pipeline.NewBroadcaster(sinks.BroadcastChan, log, publishers...).Run)

	consumer, err := ingest.NewConsumer(ingest.Config{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.KafkaGroupID,
		Topic:   cfg.KafkaPositionsTopic,
	}, dispatcher, log)
	if err != nil {
		return err
	}
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		consumer.Run(ctx)
	}()

	go refreshReference(ctx, cfg.ReferenceRefresh, db, geofences, calendars, log)

	hub := ws.NewHub(log)
	go hub.Relay(ctx, rdb.SubscribeEvents(ctx))

	authenticator := auth.NewAuthenticator(cfg.ValidAPIKeys, time.Duration(cfg.AuthCacheTTLSeconds)*time.Second, rdb)
	router := httptransport.NewRouter(
		httptransport.NewReportHandlers(report.NewService(db), log),
		httptransport.NewAuthMiddleware(authenticator),
		hub,
		os.Stdout,
	)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	<-consumed
	dispatcher.Close()
	workers.Wait()
	sinks.Close()

	drained := make(chan struct{})
	go func() {
		writers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		log.Warn("writers did not drain in time")
		cancelWrites()
		<-drained
	}
	return nil
}

type referenceSource interface {
	ListGeofences(ctx context.Context) ([]domain.Geofence, error)
	ListCalendars(ctx context.Context) (map[int64]calendar.Schedule, error)
}

// loadReference replaces the geofence and calendar registries. Calendars
// that fail to parse are logged and skipped.
func loadReference(ctx context.Context, src referenceSource, geofences *state.Geofences, calendars *calendar.Registry, log *slog.Logger) error {
	list, err := src.ListGeofences(ctx)
	if err != nil {
		return err
	}
	schedules, err := src.ListCalendars(ctx)
	if schedules == nil && err != nil {
		return err
	}
	if err != nil {
		log.Warn("some calendars were skipped", "err", err)
	}

	geofences.Replace(list)
	calendars.Replace(schedules)
	log.Info("reference data loaded", "geofences", len(list), "calendars", len(schedules))
	return nil
}

func refreshReference(ctx context.Context, every time.Duration, src referenceSource, geofences *state.Geofences, calendars *calendar.Registry, log *slog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := loadReference(ctx, src, geofences, calendars, log); err != nil {
				log.Error("reference reload failed", "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
