package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/aristath/buildrunner/internal/history"
)

// NewHistoryCommand returns the history subcommand.
func NewHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "SQLite run history path",
				Value: ".buildrunner/history.db",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of runs to show",
				Value:   10,
			},
		},
		Action: showHistory,
	}
}

func showHistory(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no run history at %s", path)
	}

	store, err := history.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.RecentRuns(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%-36s  %-8s  %d/%d tasks ok  %s  (%s)\n",
			rec.ID,
			rec.Verdict,
			rec.Total-rec.Failed-rec.Blocked,
			rec.Total,
			rec.Duration.Round(time.Millisecond),
			humanize.Time(rec.StartedAt))
	}
	return nil
}
