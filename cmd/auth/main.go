package main

import (
	"flag"
	"log"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/app"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to $CONFIG_PATH, then environment only)")
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
