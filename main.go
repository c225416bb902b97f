// relay is the public-facing prompt relay service.
// It accepts a text prompt over HTTP, forwards it to the Gemini
// generateContent API with a server-held key, normalizes the model's
// answer into plain JSON, and streams relay activity to connected
// browsers over WebSocket. The key never leaves the server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AmbitiousChris0/smartfi-ai-tool/internal"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "1" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	_ = godotenv.Load()

	cfg := internal.ConfigFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info().Msg("shutdown signal received, stopping relay")
		cancel()
	}()

	rl, err := internal.NewRelay(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start relay")
	}
	defer rl.Close()

	if cfg.GeminiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, requests will be rejected")
	}

	log.Info().
		Str("port", cfg.Port).
		Str("model", cfg.GeminiModel).
		Bool("audit", cfg.AMQPURL != "").
		Msg("relay online")

	if err := rl.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("relay exited")
	}
}
