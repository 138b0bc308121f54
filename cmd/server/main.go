package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/alpaca-assistant/gateway/internal/assistant"
	"github.com/alpaca-assistant/gateway/internal/config"
	"github.com/alpaca-assistant/gateway/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	envPath := flag.String("env", ".env", "Path to .env file (optional)")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load %s: %v", *envPath, err)
	}

	// Startup continues without config: the gateway serves in degraded mode
	// with defaults and /config reports 503.
	var snapshot *config.Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v (continuing with defaults, /config unavailable)", err)
		cfg = config.Default()
	} else {
		snapshot = cfg
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	opts := []assistant.ScriptedOption{
		assistant.WithStepDelay(cfg.Assistant.StepDelay),
	}
	if cfg.Assistant.Response != "" {
		opts = append(opts, assistant.WithResponse(cfg.Assistant.Response))
	}
	runner := assistant.NewScripted(opts...)

	server := ws.NewServer(cfg, runner)
	server.SetConfigSnapshot(snapshot)

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
