package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ozon/parser/internal/config"
	"ozon/parser/internal/container"
	"ozon/parser/internal/service"
)

type app struct {
	configPath string
	json       bool
	save       bool
	publish    bool
	resume     bool
	fresh      bool
	workers    int

	cfg *config.Config
}

// NewRootCmd creates the root command with every crawl mode attached.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "parser",
		Short: "Catalog crawler for ozon.ru",
		Long: `Crawls the ozon.ru catalog: root categories, subcategory trees and the items
of leaf categories. Results go to JSON files, PostgreSQL or Redis streams.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if err := setupLogging(cfg.Log); err != nil {
				return err
			}
			a.cfg = cfg
			log.Info("Configuration loaded successfully")
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file (default ./config.yaml)")
	cmd.PersistentFlags().BoolVar(&a.json, "json", false, "Write results to a JSON file (default when no other output is chosen)")
	cmd.PersistentFlags().BoolVar(&a.save, "save", false, "Save results into PostgreSQL")
	cmd.PersistentFlags().BoolVar(&a.publish, "publish", false, "Publish results to Redis streams")

	cmd.AddCommand(a.newCategoriesCmd())
	cmd.AddCommand(a.newSubcategoriesCmd())
	cmd.AddCommand(a.newItemsCmd())
	cmd.AddCommand(a.newImportCmd())

	return cmd
}

func (a *app) options() service.Options {
	opts := service.Options{
		JSON:    a.json,
		Save:    a.save,
		Publish: a.publish,
		Resume:  a.resume,
		Fresh:   a.fresh,
	}
	if !opts.JSON && !opts.Save && !opts.Publish {
		opts.JSON = true
	}
	return opts
}

func (a *app) needs(opts service.Options) container.Needs {
	return container.Needs{
		Database: opts.Save,
		Redis:    opts.Publish || opts.Resume || opts.Fresh,
	}
}

// run builds the container, runs fn under a signal-aware context and tears everything down.
func (a *app) run(needs container.Needs, fn func(ctx context.Context, c *container.Container) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, a.cfg, needs)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer c.Close()

	if err := fn(ctx, c); err != nil {
		return err
	}

	log.Info("Application finished successfully")
	return nil
}

func setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return nil
}
