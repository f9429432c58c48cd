package cli

import (
	"context"
	"fmt"

	"github.com/kyohei-s/kiroku/pkg/usecase/entry"
	"github.com/urfave/cli/v3"
)

func newCommand() *cli.Command {
	var (
		cfg     config
		date    string
		title   string
		content string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "date",
			Aliases:     []string{"d"},
			Usage:       "Entry date (2026-01-25, 2026/1/25 or 2026年1月25日)",
			Destination: &date,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "title",
			Aliases:     []string{"t"},
			Usage:       "Entry title",
			Destination: &title,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "content",
			Aliases:     []string{"c"},
			Usage:       "Entry content",
			Destination: &content,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)

	return &cli.Command{
		Name:  "new",
		Usage: "Create a journal entry",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			repo, err := cfg.newRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			gateway, err := cfg.newGateway(ctx)
			if err != nil {
				return err
			}

			out, err := entry.New(repo, gateway).Create(ctx, &entry.CreateInput{
				Date:    date,
				Title:   title,
				Content: content,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Created entry %d (date=%s, embedded=%v)\n", out.ID, out.Date, out.Embedded)
			return nil
		},
	}
}
