package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zulandar/tracker/internal/config"
	"github.com/zulandar/tracker/internal/db"
	"github.com/zulandar/tracker/internal/links"
	"github.com/zulandar/tracker/internal/logging"
	"github.com/zulandar/tracker/internal/notify"
	"github.com/zulandar/tracker/internal/notify/discord"
	"github.com/zulandar/tracker/internal/notify/slack"
	"github.com/zulandar/tracker/internal/store"
	"github.com/zulandar/tracker/internal/tracker"
)

const defaultConfigPath = "tracker.yaml"

// app bundles everything a command needs to talk to the tracker.
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	store    *store.GormStore
	svc      *tracker.Service
	notifier notify.Notifier
	log      *zap.SugaredLogger
	actor    string
}

func (a *app) Close() {
	a.log.Sync()
	db.Close(a.db)
}

// loadConfig reads the config file. A missing default file falls back to
// built-in defaults so a fresh checkout works with a local sqlite file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Default(), nil
	}
	return nil, err
}

// openApp loads config, connects to the database and builds the service.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	n, err := buildNotifier(cfg.Notify, log)
	if err != nil {
		db.Close(gormDB)
		return nil, err
	}
	resolver, err := links.NewGitHubResolver(cmd.Context(), cfg.GitHub)
	if err != nil {
		db.Close(gormDB)
		return nil, err
	}

	st := store.New(gormDB)
	actor, _ := cmd.Flags().GetString("actor")
	return &app{
		cfg:      cfg,
		db:       gormDB,
		store:    st,
		notifier: n,
		log:      log,
		actor:    actor,
		svc: tracker.New(tracker.Options{
			Store:    st,
			Notifier: n,
			Links:    resolver,
			Logger:   log,
		}),
	}, nil
}

// buildNotifier fans out to every configured chat backend. With none
// configured, notifications are only logged.
func buildNotifier(cfg config.NotifyConfig, log *zap.SugaredLogger) (notify.Notifier, error) {
	var multi notify.Multi
	if cfg.Slack.Enabled() {
		n, err := slack.New(cfg.Slack, nil)
		if err != nil {
			return nil, fmt.Errorf("notify: %w", err)
		}
		multi = append(multi, n)
	}
	if cfg.Discord.Enabled() {
		n, err := discord.New(cfg.Discord, nil)
		if err != nil {
			return nil, fmt.Errorf("notify: %w", err)
		}
		multi = append(multi, n)
	}
	if len(multi) == 0 {
		return notify.Log{Logger: log}, nil
	}
	return multi, nil
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}
