// Command remindersync creates a reminder for every task and exits.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/ViniZap4/lumi-drive/bootstrap"
	"github.com/ViniZap4/lumi-drive/config"
	"github.com/ViniZap4/lumi-drive/logger"
	"github.com/ViniZap4/lumi-drive/reminders"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalLog := logger.New("info", false)
		fatalLog.Fatal().Err(err).Msg("invalid configuration")
	}

	at := flag.String("at", cfg.ReminderTime, "time of day for new reminders (HH:MM)")
	list := flag.String("list", cfg.ReminderList, "reminder list name")
	dryRun := flag.Bool("dry-run", false, "log reminders instead of creating them")
	reset := flag.Bool("reset", false, "delete completed reminders from the list before syncing")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	repo, closeStorage, err := bootstrap.Repository(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("storage unavailable")
	}
	defer closeStorage()

	var sink reminders.Sink = reminders.Platform(*list, log)
	if *dryRun {
		sink = reminders.NewLogSink(log)
	}

	if *reset {
		r, ok := sink.(reminders.Resetter)
		if !ok {
			log.Fatal().Msg("reminder sink cannot reset completed reminders")
		}
		if _, err := r.ResetCompleted(ctx); err != nil {
			log.Error().Err(err).Msg("reset failed")
			closeStorage()
			os.Exit(1)
		}
	}

	res, err := reminders.NewSyncer(repo, sink, *at, log).Sync(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reminder sync failed")
		closeStorage()
		os.Exit(1)
	}
	if res.Failed > 0 {
		closeStorage()
		os.Exit(2)
	}
}
