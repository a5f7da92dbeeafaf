// README: Entry point; loads config, wires the telemetry source, ingestion sinks, session store and monitor, serves the status API.
package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "drivesafe/internal/config"
    httptransport "drivesafe/internal/http"
    "drivesafe/internal/infra"
    "drivesafe/internal/modules/history"
    "drivesafe/internal/modules/ingest"
    "drivesafe/internal/modules/monitor"
    "drivesafe/internal/modules/notify"
    "drivesafe/internal/modules/session"
    "drivesafe/internal/modules/telemetry"
)

func main() {
    cfg, err := config.Load()
    if err != nil {
        log.Fatal(err)
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    deps := httptransport.ServerDeps{}

    var store session.Store = session.NewMemoryStore()
    if cfg.Store.Driver == "redis" {
        redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password)
        if err != nil {
            log.Fatal(err)
        }
        defer redisClient.Close()
        redisStore := session.NewRedisStore(redisClient, cfg.Redis.Prefix)
        store = redisStore
        deps.Events = redisStore
    }

    var sink ingest.Sink = ingest.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout)
    if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
        mirror := ingest.NewKafkaMirror(brokers, cfg.Kafka.Topic)
        defer mirror.Close()
        sink = ingest.NewTee(sink, mirror)
        log.Printf("mirroring live samples to kafka topic %s", cfg.Kafka.Topic)
    }

    var hooks []monitor.EndHook
    if cfg.DB.DSN != "" {
        dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
        if err != nil {
            log.Fatal(err)
        }
        defer dbPool.Close()
        archive := history.NewStore(dbPool)
        if err := archive.EnsureSchema(ctx); err != nil {
            log.Fatal(err)
        }
        hooks = append(hooks, archive.Record)
        deps.History = archive
    }

    if cfg.Firebase.ProjectID != "" {
        app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
        if err != nil {
            log.Fatalf("firebase init: %v", err)
        }
        verifier, err := infra.NewFirebaseVerifier(ctx, app)
        if err != nil {
            log.Fatalf("firebase init: %v", err)
        }
        deps.Verifier = verifier
        if cfg.Firebase.DeviceToken != "" {
            msgClient, err := infra.NewMessaging(ctx, app)
            if err != nil {
                log.Fatalf("firebase init: %v", err)
            }
            hooks = append(hooks, notify.NewNotifier(msgClient, cfg.Firebase.DeviceToken).TripCompleted)
        }
    }

    source := telemetry.NewHTTPSource(cfg.Telemetry.URL, cfg.Telemetry.Timeout)
    mon := monitor.New(source, sink, store, cfg.Monitor, monitor.WithEndHooks(hooks...))
    deps.Monitor = mon

    if err := mon.Start(ctx); err != nil {
        log.Fatal(err)
    }
    log.Printf("polling %s every %s", source.URL(), cfg.Monitor.PollInterval)

    handler := httptransport.NewServer(deps)
    server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes(), ReadHeaderTimeout: 5 * time.Second}

    go func() {
        <-ctx.Done()
        mon.Stop()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Monitor.EndTimeout)
        defer cancel()
        _ = server.Shutdown(shutdownCtx)
    }()

    log.Printf("status api on %s", cfg.HTTP.Addr)
    if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
        log.Fatal(err)
    }
    mon.Wait()
}
