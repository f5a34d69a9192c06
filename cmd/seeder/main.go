package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sawdustofmind/matchcenter/internal/log"
	"github.com/sawdustofmind/matchcenter/internal/seed"
)

func run() int {
	filePath := flag.String("file", "fixtures.jsonl", "Path to the fixtures file")
	centerURL := flag.String("center", "http://localhost:8080", "Match center URL")
	pace := flag.Duration("pace", 100*time.Millisecond, "delay between created matches")
	start := flag.Bool("start", false, "start simulating the created matches")
	flag.Parse()

	log.Info("Starting Seeder",
		zap.String("file", *filePath),
		zap.String("center_url", *centerURL),
		zap.Duration("pace", *pace),
		zap.Bool("start", *start),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fixtures, err := seed.ParseFile(*filePath, time.Now())
	if err != nil {
		log.Error("Error parsing file", zap.Error(err))
		return 1
	}
	if len(fixtures) == 0 {
		log.Warn("No fixtures to seed")
		return 0
	}

	log.Info("File parsed successfully",
		zap.Int("fixture_count", len(fixtures)),
		zap.Time("first_kickoff", fixtures[0].Kickoff),
		zap.Time("last_kickoff", fixtures[len(fixtures)-1].Kickoff),
	)

	sender := seed.NewSender(*centerURL)
	created, err := sender.Seed(ctx, fixtures, *pace)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Seeding interrupted", zap.Int("created", len(created)))
			return 0
		}
		log.Error("Error seeding matches", zap.Error(err))
		return 1
	}
	log.Info("Seeded matches", zap.Int("created", len(created)))

	if *start {
		started, err := sender.StartMultiple(ctx)
		if err != nil {
			log.Error("Failed to start simulations", zap.Error(err))
			return 1
		}
		log.Info("Started simulations", zap.Strings("match_ids", started))
	}

	log.Info("Seeder finished successfully")
	return 0
}

func main() {
	// Initialize global logger
	if err := log.Init(true); err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	os.Exit(run())
}
