package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/classsync/internal/app"
	"github.com/iliyamo/classsync/internal/config"
	"github.com/iliyamo/classsync/internal/database"
	"github.com/iliyamo/classsync/internal/repository"
	"github.com/iliyamo/classsync/internal/service"
)

func main() {
	cfg := config.Load()
	log.SetLevel(logLevel(cfg.LogLevel))
	log.SetHeader("${time_rfc3339} ${level} ${short_file}:${line}")

	kv, closeKV := openStore(cfg.Store)
	defer closeKV()

	var events service.Publisher = service.Discard{}
	if cfg.Events.Enabled {
		pub := service.NewAMQPPublisher(cfg.Events.URL)
		defer pub.Close()
		events = pub
	}

	a := app.New(app.Options{Config: cfg, KV: kv, Events: events})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.Restore(ctx)

	log.Infof("portal gateway (env=%s) -> %s", cfg.Env, cfg.APIBase)
	go func() {
		if err := a.Start(); err != nil {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	if err := a.Stop(shutdownCtx); err != nil {
		log.Errorf("server: shutdown: %v", err)
	}
}

// openStore picks the KV driver.  An unreachable Redis degrades to the
// file driver; an unreachable MySQL is fatal.
func openStore(sc config.StoreConfig) (repository.KV, func()) {
	switch sc.Driver {
	case "redis":
		if client := config.NewRedisClient(); client != nil {
			log.Infof("store: redis")
			return repository.NewRedisKV(client, "classsync"), func() { _ = client.Close() }
		}
		log.Warnf("store: redis unreachable, falling back to files in %s", sc.Dir)
	case "mysql":
		db, err := database.Open(sc.DB)
		if err != nil {
			log.Fatalf("store: mysql: %v", err)
		}
		log.Infof("store: mysql %s/%s", sc.DB.Host, sc.DB.Name)
		return repository.NewSQLKV(db), func() { _ = db.Close() }
	case "file", "":
	default:
		log.Warnf("store: unknown driver %q, using files", sc.Driver)
	}
	kv, err := repository.NewFileKV(sc.Dir)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	return kv, func() {}
}

func logLevel(s string) log.Lvl {
	switch s {
	case "DEBUG":
		return log.DEBUG
	case "WARN":
		return log.WARN
	case "ERROR":
		return log.ERROR
	case "OFF":
		return log.OFF
	default:
		return log.INFO
	}
}
