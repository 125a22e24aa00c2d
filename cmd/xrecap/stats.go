package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	errs "xrecap/pkg/errors"
	"xrecap/pkg/fetcher"
	"xrecap/pkg/stats"
	"xrecap/pkg/storage"
)

var (
	statsRefresh bool
	statsJSON    bool
	statsOutput  string
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats <username> [year]",
	Short: "Compute a yearly activity report",
	Long: `Stats fetches the account's history (served from cache when possible)
and computes the activity report for one calendar year: contribution
calendar, streaks, per-hour and per-weekday breakdowns, top hashtags,
posting clients and a personality archetype.`,
	Example: `  # Report for the current year
  xrecap stats jack

  # Report for 2023, as JSON
  xrecap stats jack 2023 --json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsRefresh, "refresh", false, "recompute, ignoring cached history and reports")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print the full report as JSON")
	statsCmd.Flags().StringVarP(&statsOutput, "output", "o", "", "write the report to a JSON file")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	year := time.Now().UTC().Year()
	if len(args) == 2 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil || parsed < 2006 || parsed > year {
			return fmt.Errorf("invalid year: %s", args[1])
		}
		year = parsed
	}

	a, err := buildApp(ctx, true)
	if err != nil {
		return err
	}

	result, err := a.fetcher.FetchHistory(ctx, args[0], fetcher.Options{
		ForceRefresh: statsRefresh,
		StopDate:     time.Date(year-1, time.December, 31, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		if !errs.IsQuotaExhausted(err) || result == nil || result.Records.Len() == 0 {
			return err
		}
		fmt.Fprintln(os.Stderr, "subscription limit reached; report covers the fetched portion only")
	}

	report := stats.Compute(result.Handle, result.Records.Values(), year, stats.Options{})

	if statsOutput != "" {
		if err := storage.WriteJSON(statsOutput, report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("report written to %s\n", statsOutput)
		return nil
	}

	if statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(report)
	return nil
}

func printReport(r *stats.Statistics) {
	fmt.Printf("@%s in %d\n\n", r.Username, r.Year)
	fmt.Printf("  posts          %d across %d active days (%.1f/day)\n", r.TotalPosts, r.ActiveDays, r.AvgPerDay)
	if r.BestDay.Count > 0 {
		fmt.Printf("  best day       %s with %d posts\n", r.BestDay.Date, r.BestDay.Count)
	}
	fmt.Printf("  streaks        best %d days, current %d\n", r.BestStreak, r.CurrentStreak)
	fmt.Printf("  rhythm         most active %ss in %s, peak hour %02d:00\n", r.MostActiveWeekday, r.MostActiveMonth, r.PeakHour)
	fmt.Printf("  consistency    %.1f%% of days active, regularity %.1f\n", r.Consistency, r.Regularity)

	if len(r.TopHashtags) > 0 {
		fmt.Print("  hashtags      ")
		for _, h := range r.TopHashtags {
			fmt.Printf(" #%s(%d)", h.Tag, h.Count)
		}
		fmt.Println()
	}
	if r.Viral != nil {
		fmt.Printf("  top post       %d likes, %d reposts (%.1fx the average)\n", r.Viral.Likes, r.Viral.Reposts, r.Viral.Multiplier)
	}
	if r.Conversations.Replies > 0 {
		fmt.Printf("  conversations  %.0f%% replies, %d unique people\n", r.Conversations.ReplyRate, r.Conversations.UniquePartners)
	}
	fmt.Printf("\n  %s: %s\n", r.Personality.Type, r.Personality.Description)
}
