package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kydenul/promo"
)

type drawOptions struct {
	name        string
	entriesFile string
	rounds      string
	dice        int
	winners     int
	animate     bool
}

func newDrawCommand(root *rootOptions) *cobra.Command {
	opts := &drawOptions{}

	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Shuffle the entries and pick the winners",
		Long: `Reads one entry per line from --entries (or stdin), shuffles them for the
given number of rounds and takes the top --winners entries as winners.
Rounds come from --rounds or from a roll of --dice six-sided dice.`,
		Example: `  promo draw --name "Spring Giveaway" --entries names.txt --rounds 3
  cat names.txt | promo draw --dice 2 --winners 3 --animate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDraw(cmd, root, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.name, "name", "", "promotion name")
	flags.StringVarP(&opts.entriesFile, "entries", "f", "-", "file with one entry per line, - for stdin")
	flags.StringVarP(&opts.rounds, "rounds", "r", "", "number of shuffle rounds")
	flags.IntVar(&opts.dice, "dice", 0, "roll this many dice to decide the rounds")
	flags.IntVarP(&opts.winners, "winners", "k", promo.DefaultWinnerCount, "number of winners")
	flags.BoolVar(&opts.animate, "animate", false, "show the shuffle animation before the result")
	cmd.MarkFlagsMutuallyExclusive("rounds", "dice")

	return cmd
}

func runDraw(cmd *cobra.Command, root *rootOptions, opts *drawOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	text, err := readEntries(opts.entriesFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer a.Close()

	determiner := a.engine.RoundDeterminer()
	if opts.dice > 0 {
		determiner.SwitchMode(promo.ModeDice)
		fmt.Fprintf(out, "Rolling %d dice...\n", opts.dice)
		roll, err := determiner.RollDice(ctx, opts.dice)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (Number of Rounds set to %d)\n", roll, roll.Total)
	} else if err := determiner.SetManualInput(opts.rounds); err != nil {
		return err
	}

	req, err := a.engine.Prepare(opts.name, text, opts.winners)
	if err != nil {
		return err
	}

	var result promo.PromotionResult
	if opts.animate {
		result, err = drawAnimated(cmd, a.engine, req)
	} else {
		result, err = a.engine.Draw(ctx, req)
	}
	if err != nil {
		return err
	}

	fmt.Fprint(out, promo.FormatSummary(result, time.Local))
	if err := a.engine.History().LastError(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: result was not saved to history: %v\n", err)
	}
	return nil
}

func drawAnimated(cmd *cobra.Command, engine *promo.Engine, req promo.DrawRequest) (promo.PromotionResult, error) {
	out := cmd.OutOrStdout()
	run, err := engine.StartAnimated(cmd.Context(), req, func(f promo.Frame) {
		switch f.Kind {
		case promo.FrameRound:
			fmt.Fprintf(out, "\rShuffling... round %d/%d", f.Round, f.TotalRounds)
		case promo.FrameShuffle:
			if len(f.Order) > 0 {
				fmt.Fprintf(out, "\rShuffling... %-40.40s", f.Order[0])
			}
		}
	})
	if err != nil {
		return promo.PromotionResult{}, err
	}

	// the run follows cmd.Context(); an interrupt cancels it and Wait reports ErrRunCancelled
	result, err := run.Wait(context.Background())
	fmt.Fprintln(out)
	return result, err
}

func readEntries(path string, stdin io.Reader) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read entries from stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read entries file: %w", err)
	}
	return string(data), nil
}
