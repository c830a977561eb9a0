package cli

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamestats/internal/model"
	"github.com/mcoot/gamestats/internal/reporting"
)

var errResult = errors.New("result must be win, loss or tie")

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "report <win|loss|tie>",
		Short:     "Report the outcome of a finished game",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"win", "loss", "tie"},
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := model.ParseOutcome(args[0])
			if err != nil {
				return errResult
			}

			guard := reporting.New(client, reporting.WithLogger(guardLogger(cmd)))
			player, err := guard.Observe(cmd.Context(), outcome)
			if err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(playerFromModel(player))
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Report outcomes from a stream of game events on stdin",
		Long: `Read game events from stdin, one per line, and report each game's
outcome at most once.

Events:
  new              start a new game
  end <result>     the game concluded with win, loss or tie (may repeat)
  quit             stop reading

A game is already in progress when watch starts. Repeated "end" lines for
the same game are ignored once a report has been sent. A failed report is
retried on the next "end" line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output, cmd.OutOrStdout())

			var cached *model.Player
			guard := reporting.New(client,
				reporting.WithLogger(guardLogger(cmd)),
				reporting.WithOnReported(func(p *model.Player) {
					cached = p
				}))

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				fields := strings.Fields(scanner.Text())
				if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
					continue
				}

				switch strings.ToLower(fields[0]) {
				case "new":
					guard.NewGame()
					out.PrintMessage(fmt.Sprintf("game %d started", guard.Generation()))
				case "end":
					if len(fields) != 2 {
						out.PrintError(errors.New("usage: end <win|loss|tie>"))
						continue
					}
					outcome, err := model.ParseOutcome(fields[1])
					if err != nil {
						out.PrintError(errResult)
						continue
					}
					if _, err := guard.Observe(cmd.Context(), outcome); err != nil {
						if errors.Is(err, reporting.ErrAlreadyReported) {
							out.PrintMessage(fmt.Sprintf("game %d already reported", guard.Generation()))
							continue
						}
						out.PrintError(err)
						continue
					}
					out.Print(playerFromModel(cached))
				case "quit":
					return nil
				default:
					out.PrintError(fmt.Errorf("unknown event %q", fields[0]))
				}
			}
			return scanner.Err()
		},
	}
}

func newLeaderboardCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the ranked players",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.New("--limit must not be negative")
			}

			result, err := client.Leaderboard(cmd.Context(), limit)
			if err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries (server default when 0)")

	return cmd
}

// guardLogger logs guard transitions to stderr when --verbose is set
func guardLogger(cmd *cobra.Command) *slog.Logger {
	if !cfg.Verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}
