package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/dispatch/internal/assignment"
	"github.com/and161185/dispatch/internal/candidates"
	"github.com/and161185/dispatch/internal/commission"
	"github.com/and161185/dispatch/internal/config"
	"github.com/and161185/dispatch/internal/deps"
	"github.com/and161185/dispatch/internal/distribution"
	"github.com/and161185/dispatch/internal/outbox"
	"github.com/and161185/dispatch/internal/server"
	"github.com/and161185/dispatch/internal/settings"
	"github.com/and161185/dispatch/internal/storage"
	"github.com/and161185/dispatch/internal/wakeup"
	"github.com/and161185/dispatch/internal/watchdog"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := config.NewConfig()
	defer config.Logger.Sync()

	d, err := deps.NewDependencies(config)
	if err != nil {
		config.Logger.Fatal(err)
	}

	storage, err := storage.NewPostgreStorage(ctx, config.DatabaseURI)
	if err != nil {
		config.Logger.Fatal(err)
	}
	defer storage.Close()

	st := settings.NewCache(storage, config.SettingsTTL)
	notifier := outbox.New(storage, d.Logger)

	filter := candidates.NewFilter(storage, st, d.Events, d.Logger)
	engine := distribution.NewEngine(storage, filter, st, d.Events, d.Logger)
	assigner := assignment.NewService(storage, filter, d.Logger)
	commissions := commission.NewService(storage, st, d.Logger)

	jobs := server.NewJobs(config, server.Workers{
		Distribution: engine,
		Watchdog:     watchdog.New(storage, engine, notifier, d.Logger),
		Wakeup:       wakeup.NewSweeper(storage, st, notifier, d.Events, d.Logger),
		Commission:   commissions,
	}, d.Logger)

	srv := server.NewServer(storage, server.Services{
		Candidates: filter,
		Assignment: assigner,
		Offers:     engine,
		Commission: commissions,
	}, jobs, config, d)
	if err := srv.Run(ctx); err != nil {
		config.Logger.Fatal(err)
	}
}
