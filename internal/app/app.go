package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"hexclash/server/internal/catalog"
	"hexclash/server/internal/config"
	"hexclash/server/internal/hub"
	"hexclash/server/internal/match"
	servernet "hexclash/server/internal/net"
	"hexclash/server/internal/net/proto"
	"hexclash/server/internal/observability"
	"hexclash/server/internal/telemetry"
	"hexclash/server/internal/validate"
	"hexclash/server/logging"
	loggingSinks "hexclash/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Settings config.Config
	Logger   telemetry.Logger
}

func Run(ctx context.Context, cfg Config) error {
	settings := cfg.Settings
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	router, closeSinks, err := newLogRouter(settings)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
		closeSinks()
	}()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{Endpoint: settings.OtelEndpoint, ServiceName: "hexclash"})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if terr := shutdownTracing(flushCtx); terr != nil {
			telemetryLogger.Printf("failed to flush traces: %v", terr)
		}
	}()

	cat, err := catalog.Load(settings.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	secret := []byte(settings.TokenSecret)
	if len(secret) == 0 {
		secret, err = randomSecret()
		if err != nil {
			return fmt.Errorf("failed to generate token secret: %w", err)
		}
		telemetryLogger.Printf("HEXCLASH_TOKEN_SECRET not set, using an ephemeral secret")
	}

	metrics := logging.NewMetrics()
	h, err := hub.New(hub.Config{
		Match: match.Config{
			Radius:     settings.GridRadius,
			Seed:       settings.Seed,
			Mode:       settings.Mode(),
			Heuristic:  settings.PathHeuristic(),
			MaxEffects: settings.MaxEffectsPerEntity,
			Token:      validate.TokenConfig{Secret: secret, TTL: settings.TokenTTL},
			Catalog:    cat,
			Publisher:  router,
			Logger:     telemetry.WithPrefix(telemetryLogger, "match"),
		},
		IdleTimeout:  settings.TurnIdleTimeout,
		StepInterval: settings.StepInterval,
		Codec:        settings.Codec(),
		Logger:       telemetryLogger,
		Metrics:      metrics,
	})
	if err != nil {
		return err
	}
	defer h.Close()

	if err := seedBots(ctx, h, settings); err != nil {
		return err
	}

	handler := servernet.NewHTTPHandler(h, servernet.HTTPHandlerConfig{
		ClientDir:     settings.ClientDir,
		Logger:        fallbackLogger,
		Observability: observability.Config{EnablePprofTrace: settings.EnablePprofTrace},
	})

	srv := &http.Server{Addr: settings.Addr, Handler: handler}
	telemetryLogger.Printf("match %s listening on %s", h.Match().ID(), srv.Addr)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return h.Run(groupCtx)
	})
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// newLogRouter builds the structured log router with a console sink and,
// when configured, a JSON file sink. The returned function closes the file.
func newLogRouter(settings config.Config) (*logging.Router, func(), error) {
	logConfig := logging.DefaultConfig()
	logConfig.MinimumSeverity = settings.MinimumSeverity()
	logConfig.Fields = map[string]any{"service": "hexclash"}

	var sinks []logging.NamedSink
	if logConfig.HasSink("console") {
		sinks = append(sinks, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout, logConfig.Console)})
	}
	closeFile := func() {}
	if settings.LogJSONPath != "" {
		file, err := os.OpenFile(settings.LogJSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open json log: %w", err)
		}
		logConfig.EnabledSinks = append(logConfig.EnabledSinks, "json")
		logConfig.JSON.FilePath = settings.LogJSONPath
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(file, logConfig.JSON.FlushInterval)})
		closeFile = func() { file.Close() }
	}

	router, err := logging.NewRouter(logging.ClockFunc(time.Now), logConfig, sinks)
	if err != nil {
		closeFile()
		return nil, nil, err
	}
	return router, closeFile, nil
}

func seedBots(ctx context.Context, h *hub.Hub, settings config.Config) error {
	specs, err := settings.BotSpecs()
	if err != nil {
		return err
	}
	for i, spec := range specs {
		_, err := h.Join(ctx, proto.JoinRequest{
			Name:     fmt.Sprintf("%s-%d", spec.Template, i+1),
			Team:     spec.Team,
			Template: spec.Template,
			Bot:      true,
		})
		if err != nil {
			return fmt.Errorf("seed bot %s:%s: %w", spec.Template, spec.Team, err)
		}
	}
	return nil
}

func randomSecret() ([]byte, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	return []byte(hex.EncodeToString(raw)), nil
}
