package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/classsync/internal/config"
	"github.com/iliyamo/classsync/internal/queue"
)

// activity-consumer drains the activity queue into an append-only log.
func main() {
	config.LoadDotEnv()
	ev := config.LoadEventsConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := queue.NewConsumer(ev.URL, os.Getenv("ACTIVITY_LOG"))
	log.Infof("activity-consumer: writing to %s", c.LogPath)
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("activity-consumer: %v", err)
	}
}
