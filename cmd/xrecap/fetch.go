package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	errs "xrecap/pkg/errors"
	"xrecap/pkg/fetcher"
	"xrecap/pkg/storage"
)

var (
	fetchRefresh  bool
	fetchMaxPages int
	fetchOutput   string
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch <username>",
	Short: "Fetch an account's complete posting history",
	Long: `Fetch walks an account's entire posting history page by page, resuming
from the cache when a previous run left off. Progress is checkpointed so an
interrupted fetch loses at most a few pages.`,
	Example: `  # Fetch everything @jack ever posted
  xrecap fetch jack

  # Re-fetch from scratch, ignoring the cache
  xrecap fetch jack --refresh

  # Fetch and export to a JSON file
  xrecap fetch jack --output jack.json`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchRefresh, "refresh", false, "discard the cached history and fetch from scratch")
	fetchCmd.Flags().IntVar(&fetchMaxPages, "max-pages", 0, "override the computed page ceiling")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "export the history to a JSON file")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, true)
	if err != nil {
		return err
	}

	result, err := a.fetcher.FetchHistory(ctx, args[0], fetcher.Options{
		ForceRefresh: fetchRefresh,
		MaxPages:     fetchMaxPages,
		OnProgress: func(p fetcher.Progress) {
			fmt.Printf("\rpage %d/%d  %d posts (%d new)  [%s]",
				p.Page, p.MaxPages, p.Total, p.New, p.Mode)
		},
	})
	if result != nil && result.Pages > 0 {
		fmt.Println()
	}
	if err != nil {
		if errs.IsQuotaExhausted(err) && result != nil && result.Records.Len() > 0 {
			fmt.Printf("subscription limit reached; keeping the %d posts fetched so far\n", result.Records.Len())
		} else {
			return err
		}
	}

	fmt.Printf("@%s: %d posts", result.Handle, result.Records.Len())
	if result.Profile != nil && result.Profile.StatusesCount > 0 {
		fmt.Printf(" (%.1f%% of %d)", result.Coverage(), result.Profile.StatusesCount)
	}
	if result.FromCache {
		fmt.Print(" [cached]")
	}
	fmt.Println()

	if fetchOutput != "" {
		if err := storage.ExportHistory(fetchOutput, result.Handle, result.Profile, result.Records); err != nil {
			return fmt.Errorf("failed to export history: %w", err)
		}
		fmt.Printf("exported to %s\n", fetchOutput)
	}
	return nil
}
