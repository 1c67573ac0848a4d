package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"waypoint-server/internal/engine"
	"waypoint-server/internal/server"
	"waypoint-server/internal/version"
	"waypoint-server/pkg/logger"
)

func init() {
	logger.Init()
}

// envOr возвращает переменную окружения или значение по умолчанию
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Log.Fatalf("%s: %v", key, err)
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Log.Fatalf("%s: %v", key, err)
	}
	return b
}

func main() {
	cfg := engine.NewConfig()

	// 1. Окружение задает значения по умолчанию, флаги их перекрывают
	cfg.GradientPath = envOr("WP_GRADIENT_PATH", cfg.GradientPath)
	cfg.Cache.Size = envInt("WP_CACHE_SIZE", cfg.Cache.Size)
	cfg.Cache.Prefill = envBool("WP_PREFILL_CACHE", cfg.Cache.Prefill)

	var (
		seed    int64
		noGeo   bool
		port    = envOr("WP_PORT", "8080")
		tcpPort = envOr("WP_TCP_PORT", "4444")
	)
	flag.Int64Var(&seed, "seed", 0, "Master seed (0 for random)")
	flag.StringVar(&cfg.WorldName, "world", cfg.WorldName, "World name, also the gradient store subdirectory")
	flag.StringVar(&cfg.MapFile, "map", "", "Text map file ('#' wall, letters are places); empty to generate")
	flag.IntVar(&cfg.Width, "width", cfg.Width, "Generated map width")
	flag.IntVar(&cfg.Height, "height", cfg.Height, "Generated map height")
	flag.BoolVar(&cfg.OpenField, "open-field", cfg.OpenField, "Generate districts and streets instead of rooms")
	flag.BoolVar(&cfg.Boulders, "boulders", cfg.Boulders, "Scatter noise boulders over the generated map")
	flag.BoolVar(&noGeo, "no-geo", false, "Run without a geographic calibration")
	flag.Float64Var(&cfg.CellDeg, "cell-deg", cfg.CellDeg, "Cell size in degrees")
	flag.IntVar(&cfg.Agents, "agents", cfg.Agents, "Number of autonomous agents")
	flag.IntVar(&cfg.AgentSpeed, "speed", cfg.AgentSpeed, "Agent steps per tick")
	flag.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "Simulation tick interval")
	flag.StringVar(&cfg.GradientPath, "gradients", cfg.GradientPath, "Gradient store root (empty for memory only)")
	flag.IntVar(&cfg.Cache.Size, "cache-size", cfg.Cache.Size, "Gradients kept in memory")
	flag.BoolVar(&cfg.Cache.Prefill, "prefill", cfg.Cache.Prefill, "Warm the gradient cache from disk on start")
	flag.StringVar(&port, "port", port, "HTTP/WebSocket port")
	flag.StringVar(&tcpPort, "tcp-port", tcpPort, "Line protocol port (empty to disable)")
	flag.Parse()

	logger.Log.Info("Starting Waypoint...")
	logger.Log.Info(version.String())

	if seed != 0 {
		cfg.Seed = seed
		logger.Log.Infof("Using explicit master seed: %d", seed)
	} else {
		logger.Log.Infof("Using random master seed: %d", cfg.Seed)
	}
	if noGeo {
		cfg.Origin = nil
	}

	// 2. Мир и симуляция
	svc, err := engine.NewService(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to build world: ", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	// 3. Внешние интерфейсы
	srv := server.New(svc.Sim, svc.Hub, port)
	go func() {
		if err := srv.Run(); err != nil {
			logger.Log.Fatal("Server start error: ", err)
		}
	}()

	var lines *server.LineServer
	if tcpPort != "" {
		lines = server.NewLineServer(svc.Sim, ":"+tcpPort)
		if err := lines.Start(); err != nil {
			logger.Log.Fatal("Line server start error: ", err)
		}
	}

	// Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Log.Info("Shutting down...")

	if lines != nil {
		lines.Stop()
	}
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("HTTP shutdown")
	}

	cancel()
	svc.Wait()

	logger.Log.Info("Done.")
}
