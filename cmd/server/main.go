// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/promptclash/server/internal/database"
	"github.com/promptclash/server/internal/game"
	"github.com/promptclash/server/internal/gemini"
	"github.com/promptclash/server/internal/handlers"
	"github.com/promptclash/server/internal/lobby"
	"github.com/promptclash/server/internal/matchmaking"
	"github.com/promptclash/server/internal/middleware"
	"github.com/promptclash/server/internal/notify"
	"github.com/promptclash/server/internal/orchestrator"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	ctx := context.Background()

	// Redis notifier: optional. Without it, event publication is a no-op and
	// the websocket routes answer 503.
	var notifier notify.Notifier = notify.Nop{}
	var redisNotifier *notify.RedisNotifier
	if os.Getenv("REDIS_ADDR") != "" {
		rn, err := notify.ConnectRedis(logger)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, events disabled")
		} else {
			notifier = rn
			redisNotifier = rn
		}
	}

	// Postgres recorder: optional. Without it, completed games live only in
	// memory.
	var recorder game.Recorder
	if connString := os.Getenv("DATABASE_URL"); connString != "" {
		pool, err := database.Connect(ctx, connString)
		if err != nil {
			logger.WithError(err).Warn("postgres unavailable, completed games will not be persisted")
		} else {
			defer pool.Close()
			recorder = database.NewRecorder(pool, logger)
		}
	}

	// Gemini client: optional. Without it, generation falls back to a local
	// placeholder and submission scoring is unavailable.
	var generator orchestrator.Generator
	var judge orchestrator.Judge
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		client := gemini.New(gemini.Config{
			APIKey:  apiKey,
			BaseURL: os.Getenv("GEMINI_BASE_URL"),
			Model:   os.Getenv("GEMINI_MODEL"),
		})
		generator = client
		judge = client
	} else {
		logger.Warn("GEMINI_API_KEY not set, using placeholder generation and no judge")
	}

	games := game.NewStore(notifier, recorder, logger)
	lobbies := lobby.NewStore(notifier, logger)
	queue := matchmaking.NewQueue(games, logger)
	orch := orchestrator.New(games, lobbies, generator, judge, notifier, logger)

	s := &handlers.Server{
		Lobbies:      lobbies,
		Games:        games,
		Queue:        queue,
		Orchestrator: orch,
		Notifier:     redisNotifier,
		Logger:       logger,
	}

	handler := middleware.LogMiddleware(logger)(s.Routes())

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
