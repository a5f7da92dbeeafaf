// README: Local OBD telemetry simulator; serves a recording (or a synthetic drive) for the trip monitor.
package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"
)

type Config struct {
    Addr   string
    Path   string
    File   string
    Moving int
    Idle   int
    Loop   bool
    Nested bool
}

func main() {
    cfg := loadConfig()

    lines, err := readings(cfg)
    if err != nil {
        log.Fatal(err)
    }
    replay := NewReplayer(lines, cfg.Loop, cfg.Nested)

    mux := http.NewServeMux()
    mux.Handle(cfg.Path, replay)
    server := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()
    go func() {
        <-ctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        _ = server.Shutdown(shutdownCtx)
    }()

    log.Printf("obd-sim: serving %d readings on http://%s%s", len(lines), cfg.Addr, cfg.Path)
    if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
        log.Fatal(err)
    }
    log.Printf("obd-sim: served %d requests", replay.Served())
}

func readings(cfg Config) ([][]byte, error) {
    if cfg.File == "" {
        return Synthetic(cfg.Moving, cfg.Idle), nil
    }
    f, err := os.Open(cfg.File)
    if err != nil {
        return nil, err
    }
    defer f.Close()
    lines, err := LoadLines(f)
    if err != nil {
        return nil, fmt.Errorf("%s: %w", cfg.File, err)
    }
    return lines, nil
}

func loadConfig() Config {
    var cfg Config
    flag.StringVar(&cfg.Addr, "addr", envOrDefault("OBD_SIM_ADDR", "127.0.0.1:9999"), "listen address")
    flag.StringVar(&cfg.Path, "path", envOrDefault("OBD_SIM_PATH", "/20250530_070001.json"), "URL path of the reading")
    flag.StringVar(&cfg.File, "file", os.Getenv("OBD_SIM_FILE"), "JSON-lines recording; empty serves a synthetic drive")
    flag.IntVar(&cfg.Moving, "moving", 60, "synthetic moving readings")
    flag.IntVar(&cfg.Idle, "idle", 10, "synthetic idle readings")
    flag.BoolVar(&cfg.Loop, "loop", false, "restart the recording when exhausted instead of repeating the last reading")
    flag.BoolVar(&cfg.Nested, "nested", false, `wrap each reading as {"data": ...}`)
    flag.Parse()
    return cfg
}

func envOrDefault(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}
