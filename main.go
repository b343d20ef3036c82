// Command chatfleet is the main entrypoint for the multi-bot chat dispatcher.
// It:
//   - Loads configuration and initializes structured logging.
//   - Builds the bot roster and message pool from files when configured.
//   - Starts the hub goroutine that owns all runtime state and drives the
//     random-interval scheduler.
//   - Exposes the HTTP command surface with /healthz, /status, /metrics and
//     the /events SSE stream.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ngscoder/chatfleet/config"
	"github.com/ngscoder/chatfleet/hub"
	"github.com/ngscoder/chatfleet/irc"
	"github.com/ngscoder/chatfleet/server"
	"github.com/ngscoder/chatfleet/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	if err := cfg.ValidateSendReady(); err != nil {
		slog.Warn("dispatch disabled until a channel is set via POST /channel", slog.Any("err", err))
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("chatfleet", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// IRC session doubles as sender and prober; the hub owns everything else.
	session := irc.NewSession(cfg.IRCAddr, cfg.IRCTLS)
	h := hub.New(cfg, session, session)
	go h.Run(ctx)

	// Seed roster and pool from files when configured.
	if cfg.BotsFile != "" {
		if data, err := os.ReadFile(cfg.BotsFile); err != nil {
			slog.Error("failed to read bots file", slog.String("path", cfg.BotsFile), slog.Any("err", err))
		} else {
			n := h.LoadCredentials(string(data))
			slog.Info("bot roster loaded", slog.String("path", cfg.BotsFile), slog.Int("bots", n))
		}
	}
	if cfg.MessagesFile != "" {
		if data, err := os.ReadFile(cfg.MessagesFile); err != nil {
			slog.Error("failed to read messages file", slog.String("path", cfg.MessagesFile), slog.Any("err", err))
		} else {
			n := h.LoadMessages(string(data))
			slog.Info("message pool loaded", slog.String("path", cfg.MessagesFile), slog.Int("messages", n))
		}
	}
	if cfg.ProbeOnStart {
		slog.Info("probing bot credentials on startup")
		h.ProbeAll()
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (commands/health/status/metrics/events)
	go func() {
		if err := server.Start(ctx, h, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
