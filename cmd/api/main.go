package main

import (
	"flag"
	"log"

	"github.com/copydesk-io/copydesk/internal/api"
	"github.com/copydesk-io/copydesk/internal/archive"
	"github.com/copydesk-io/copydesk/internal/auth"
	"github.com/copydesk-io/copydesk/internal/billing"
	"github.com/copydesk-io/copydesk/internal/chat"
	"github.com/copydesk-io/copydesk/internal/config"
	"github.com/copydesk-io/copydesk/internal/database"
	"github.com/copydesk-io/copydesk/internal/llm"
	"github.com/copydesk-io/copydesk/internal/research"
	"github.com/copydesk-io/copydesk/internal/voice"
)

const version = "0.0.1"

func initializeAPI(configPath string) (*api.Api, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	store, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}

	model, err := llm.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	archiveClient, err := archive.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	var archiver chat.Archiver
	if archiveClient != nil {
		archiver = archiveClient
	}

	pipeline := chat.NewPipeline(
		store,
		model,
		research.NewFetcher(),
		research.NewSearcher(cfg.Search.Endpoint, cfg.Search.APIKey),
		archiver,
		voice.NewLearner(store, model),
	)

	return api.NewApi(
		cfg,
		store,
		pipeline,
		billing.NewProcessor(store),
		auth.NewTokenManager(cfg.Auth.JWTSecret),
		archiveClient,
	)
}

func main() {
	configPath := flag.String("config", "app.yml", "Path to configuration file")
	flag.Parse()

	log.Printf("Starting CopyDesk API v%s with config: %s", version, *configPath)

	api, err := initializeAPI(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	api.Serve()
}
