package main

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ozon/parser/internal/container"
)

func (a *app) newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Parse root categories from the catalog menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := a.options()
			return a.run(a.needs(opts), func(ctx context.Context, c *container.Container) error {
				categories, err := c.Service.ParseCategories(ctx, opts)
				if err != nil {
					return err
				}
				log.Infof("✅ Parsed %d root categories", len(categories))
				return nil
			})
		},
	}
}

func (a *app) newSubcategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subcategories [category-url...]",
		Short: "Parse subcategory trees of the given categories (all root categories by default)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.options()
			return a.run(a.needs(opts), func(ctx context.Context, c *container.Container) error {
				results, err := c.Service.ParseSubcategories(ctx, args, opts)
				if err != nil {
					return err
				}
				log.Infof("✅ Parsed subcategories of %d categories", len(results))
				return nil
			})
		},
	}
}

func (a *app) newItemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items [leaf-category-url...]",
		Short: "Parse items of leaf categories (every leaf category by default)",
		Long: `Renders every listing page of each leaf category in a headless browser and
extracts its items. With --resume, categories finished by an earlier run are
skipped; progress is kept in Redis.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.options()
			return a.run(a.needs(opts), func(ctx context.Context, c *container.Container) error {
				results, err := c.Service.ParseItems(ctx, args, opts)

				total := 0
				for _, items := range results {
					total += len(items)
				}
				log.Infof("✅ Parsed %d items from %d categories", total, len(results))
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&a.resume, "resume", false, "Skip categories already crawled by an earlier run")
	cmd.Flags().BoolVar(&a.fresh, "fresh", false, "Forget recorded progress of the crawled categories")

	return cmd
}

func (a *app) newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Persist batches published to Redis streams into PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			workers := a.workers
			if workers <= 0 {
				workers = a.cfg.Redis.ConsumerWorkers
			}
			return a.run(container.Needs{Database: true, Redis: true}, func(ctx context.Context, c *container.Container) error {
				return c.Service.RunImporters(ctx, workers)
			})
		},
	}

	cmd.Flags().IntVarP(&a.workers, "workers", "w", 0, "Importer workers per stream (default redis.consumer_workers)")

	return cmd
}
