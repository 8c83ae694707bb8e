package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/offscreen/internal/infrastructure/config"
	"github.com/GriffinCanCode/offscreen/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("OFFSCREEN_CONFIG"), "Config file (.toml, .yaml)")
	port := flag.String("port", "", "Server port")
	host := flag.String("host", "", "Server host")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dev := flag.Bool("dev", false, "Development logging")
	hostOS := flag.String("host-os", "", "Override the detected host OS")
	store := flag.String("store", "", "Preload record file; empty keeps records in memory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, *port, *host, *logLevel, *dev, *hostOS, *store)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
	case err := <-errChan:
		if err != nil {
			log.Printf("Server error: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}
}

// applyFlags overrides config values with explicitly set flags
func applyFlags(cfg *config.Config, port, host, logLevel string, dev bool, hostOS, store string) {
	if port != "" {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if dev {
		cfg.Logging.Development = true
	}
	if hostOS != "" {
		cfg.WebView.HostOS = hostOS
	}
	if store != "" {
		cfg.WebView.StorePath = store
	}
}
