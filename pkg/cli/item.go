package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/kyohei-s/kiroku/pkg/model"
	"github.com/urfave/cli/v3"
)

func itemCommand() *cli.Command {
	return &cli.Command{
		Name:  "item",
		Usage: "Manage catalog items indexed for retrieval",
		Commands: []*cli.Command{
			itemAddCommand(),
			itemUpdateCommand(),
			itemDeleteCommand(),
			itemListCommand(),
		},
	}
}

func itemAddCommand() *cli.Command {
	var (
		cfg     config
		title   string
		content string
		source  string
		tags    []string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "title",
			Aliases:     []string{"t"},
			Usage:       "Item title",
			Destination: &title,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "content",
			Aliases:     []string{"c"},
			Usage:       "Item content",
			Destination: &content,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "source",
			Aliases:     []string{"s"},
			Usage:       "Where the content came from",
			Destination: &source,
		},
		&cli.StringSliceFlag{
			Name:        "tag",
			Usage:       "Tag (repeatable)",
			Destination: &tags,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "add",
		Usage: "Add a catalog item",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			store := cfg.newItemStore()
			defer store.Close()

			item, err := store.Create(&model.ItemCreateInput{
				Title:   title,
				Content: content,
				Source:  source,
				Tags:    tags,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Created item %s\n", item.ID)
			return nil
		},
	}
}

func itemUpdateCommand() *cli.Command {
	var (
		cfg     config
		id      string
		title   string
		content string
		source  string
		tags    []string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Item ID",
			Destination: &id,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "title",
			Aliases:     []string{"t"},
			Usage:       "New title",
			Destination: &title,
		},
		&cli.StringFlag{
			Name:        "content",
			Aliases:     []string{"c"},
			Usage:       "New content",
			Destination: &content,
		},
		&cli.StringFlag{
			Name:        "source",
			Aliases:     []string{"s"},
			Usage:       "New source",
			Destination: &source,
		},
		&cli.StringSliceFlag{
			Name:        "tag",
			Usage:       "New tag set (repeatable, replaces existing tags)",
			Destination: &tags,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "update",
		Usage: "Update fields of a catalog item",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			store := cfg.newItemStore()
			defer store.Close()

			// Only flags the caller actually set become part of the patch.
			var patch model.ItemPatch
			if c.IsSet("title") {
				patch.Title = &title
			}
			if c.IsSet("content") {
				patch.Content = &content
			}
			if c.IsSet("source") {
				patch.Source = &source
			}
			if c.IsSet("tag") {
				patch.Tags = &tags
			}

			item, err := store.Update(model.ItemID(id), &patch)
			if err != nil {
				if errors.Is(err, model.ErrItemNotFound) {
					return fmt.Errorf("item not found: %s", id)
				}
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Updated item %s\n", item.ID)
			return nil
		},
	}
}

func itemDeleteCommand() *cli.Command {
	var (
		cfg config
		id  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Item ID",
			Destination: &id,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "delete",
		Usage: "Delete a catalog item",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			store := cfg.newItemStore()
			defer store.Close()

			deleted, err := store.Delete(model.ItemID(id))
			if err != nil {
				return err
			}

			if deleted {
				fmt.Fprintf(c.Root().Writer, "Deleted item %s\n", id)
			} else {
				fmt.Fprintf(c.Root().Writer, "No item with id %s\n", id)
			}
			return nil
		},
	}
}

func itemListCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "list",
		Usage: "List catalog items, most recently updated first",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			store := cfg.newItemStore()
			defer store.Close()

			items, err := store.List()
			if err != nil {
				return err
			}

			if len(items) == 0 {
				fmt.Fprintf(c.Root().Writer, "No items\n")
				return nil
			}

			for _, item := range items {
				fmt.Fprintf(c.Root().Writer, "%s  %s  (updated %s)\n",
					item.ID, item.Title, item.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
