package cli

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	// Optional; the CLI works from plain environment variables as well.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "kiroku",
		Usage: "Journal with retrieval-augmented question answering",
		Commands: []*cli.Command{
			newCommand(),
			queryCommand(),
			itemCommand(),
			reindexCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
