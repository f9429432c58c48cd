package cli

import (
	"context"
	"fmt"

	"github.com/kyohei-s/kiroku/pkg/usecase/reindex"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

func reindexCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, chromaFlags(&cfg)...)

	return &cli.Command{
		Name:  "reindex",
		Usage: "Rebuild the external vector index from all catalog items",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			store := cfg.newItemStore()
			defer store.Close()

			gateway, err := cfg.newGateway(ctx)
			if err != nil {
				return err
			}

			uc := reindex.New(store, gateway, cfg.newIndex())

			var bar *progressbar.ProgressBar
			uc.Progress = func(done, total int) {
				if bar == nil {
					bar = progressbar.Default(int64(total), "embedding items")
				}
				_ = bar.Set(done)
			}

			result, err := uc.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Reindexed: items=%d chunks=%d\n", result.Items, result.Chunks)
			return nil
		},
	}
}
