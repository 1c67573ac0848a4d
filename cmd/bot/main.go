package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waypoint-server/internal/agent"
	"waypoint-server/pkg/logger"
	"waypoint-server/pkg/utils"
)

func init() {
	logger.Init()
}

// Нагрузочный клиент: берет агента под управление и гоняет его по карте
func main() {
	var (
		url   string
		name  string
		limit int
		seed  int64
	)
	flag.StringVar(&url, "url", "ws://localhost:8080/ws", "Server WebSocket URL")
	flag.StringVar(&name, "agent", "agent-1", "Agent to drive")
	flag.IntVar(&limit, "limit", 0, "Stop after N arrivals (0 = run until interrupted)")
	flag.Int64Var(&seed, "seed", time.Now().UnixNano(), "Target picker seed")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot := agent.NewBot(url, "bot-"+utils.GenerateID(), name, seed)
	bot.Limit = limit
	if err := bot.Run(ctx); err != nil {
		logger.Log.Fatal("Bot stopped: ", err)
	}
	logger.Log.Infof("Bot done, %d arrivals", bot.Arrivals())
}
