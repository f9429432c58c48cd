package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/kyohei-s/kiroku/pkg/usecase/query"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func queryCommand() *cli.Command {
	var (
		cfg  config
		topK int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "top-k",
			Aliases:     []string{"k"},
			Usage:       "Maximum number of hits to rank",
			Value:       5,
			Destination: &topK,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)

	return &cli.Command{
		Name:      "query",
		Usage:     "Ask a question answered from journal entries",
		ArgsUsage: "[question]",
		Flags:     flags,
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
			synth, err := cfg.newSynthesizer(ctx)
			if err != nil {
				return err
			}

			uc := query.New(repo, gateway, synth)

			// One-shot mode when a question is given as arguments.
			if question := strings.TrimSpace(strings.Join(c.Args().Slice(), " ")); question != "" {
				return runQuery(ctx, c, uc, question, int(topK))
			}

			// Interactive mode otherwise.
			rl, err := readline.New("質問> ")
			if err != nil {
				return goerr.Wrap(err, "failed to open prompt")
			}
			defer rl.Close()

			for {
				line, err := rl.Readline()
				if err != nil { // io.EOF or interrupt
					break
				}
				question := strings.TrimSpace(line)
				if question == "" {
					continue
				}
				if strings.EqualFold(question, "exit") || question == "終了" {
					break
				}
				if err := runQuery(ctx, c, uc, question, int(topK)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func runQuery(ctx context.Context, c *cli.Command, uc *query.UseCase, question string, topK int) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " searching..."
	s.Start()
	out, err := uc.Query(ctx, question, topK)
	s.Stop()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.Root().Writer, "%s\n", out.Answer)
	if out.Note != "" {
		fmt.Fprintf(c.Root().Writer, "\n(%s)\n", out.Note)
	}

	if len(out.Hits) > 0 {
		fmt.Fprintf(c.Root().Writer, "\nHits:\n")
		for i, hit := range out.Hits {
			fmt.Fprintf(c.Root().Writer, "%d. [%s] %s (id=%d, score=%.4f)\n",
				i+1, hit.Date, hit.Title, hit.ID, hit.Score)
		}
	}
	fmt.Fprintf(c.Root().Writer, "\n")
	return nil
}
