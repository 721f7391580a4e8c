package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chatrelay/pkg/server"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	configPath := flag.String("config", "chatrelay.toml", "Path to config file")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	historyPath := flag.String("history", "", "Path to history file (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("chatrelay server %s\n", Version)
		os.Exit(0)
	}

	// Load configuration (creates default if not found)
	config, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Command-line flags override config file
	if *port != 0 {
		config.Server.Port = *port
	}
	if *historyPath != "" {
		config.Server.HistoryPath = *historyPath
	}

	srv := server.NewServer(config.ToServerConfig())

	if *debug {
		srv.EnableDebugLogging()
		log.Printf("Debug logging enabled")
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("chatrelay server %s started successfully", Version)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")
	if err := srv.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped")
}
