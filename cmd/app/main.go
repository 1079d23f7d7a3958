package main

import (
	"flag"
	"log"
	"os"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/di"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s exchange=%s symbols=%v", cfg.Environment, cfg.Exchange.Type, cfg.Symbols)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// blocks until signal
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
