package main

import (
	"errors"
	"fmt"

	"linktrack/internal/linkedin"
	"linktrack/internal/tracker"

	"github.com/spf13/cobra"
)

// log-metrics command
var logMetricsCmd = &cobra.Command{
	Use:   "log-metrics URL_OR_URN",
	Short: "Record engagement numbers for a post by hand",
	Long: `Record a metrics snapshot for a tracked post. Use this when the
analytics API is not available and you are reading the numbers off the
LinkedIn UI. Snapshots are append-only; stats always use the latest one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("LogMetrics")
		if err != nil {
			return err
		}
		defer a.Close()

		p := tracker.SaveMetricsParams{}
		p.PostID, _ = cmd.Flags().GetInt64("id")
		if len(args) > 0 {
			p.URN, err = linkedin.ExtractURN(args[0])
			if err != nil {
				return err
			}
		}
		p.Impressions, _ = cmd.Flags().GetInt64("impressions")
		p.Reactions, _ = cmd.Flags().GetInt64("reactions")
		p.Comments, _ = cmd.Flags().GetInt64("comments")
		p.Shares, _ = cmd.Flags().GetInt64("shares")
		p.Clicks, _ = cmd.Flags().GetInt64("clicks")
		p.ProfileViews, _ = cmd.Flags().GetInt64("profile-views")
		p.FollowerGains, _ = cmd.Flags().GetInt64("follower-gains")

		id, err := a.LocalService().LogMetrics(p)
		if err != nil {
			if errors.Is(err, tracker.ErrPostNotFound) {
				return fmt.Errorf("no tracked post matches (run 'linktrack track' first)")
			}
			return err
		}

		okText.Printf("Snapshot %d recorded\n", id)
		return nil
	},
}

// collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch analytics for all tracked posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		a, err := newApp("Collect")
		if err != nil {
			return err
		}
		defer a.Close()

		svc, err := a.NetworkService()
		if err != nil {
			return err
		}

		res, err := svc.Collect(cmd.Context(), days)
		if err != nil {
			if errors.Is(err, tracker.ErrNoAnalyticsAccess) {
				errText.Println("The analytics API rejected your credentials.")
				fmt.Println("Member post analytics needs the r_member_social scope, which")
				fmt.Println("requires LinkedIn Community Management API approval. Until then,")
				fmt.Println("record numbers by hand with 'linktrack log-metrics'.")
			}
			return err
		}

		okText.Printf("Collected metrics for %d of %d posts\n", res.Collected, res.Attempted)
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-category performance",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Stats")
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.LocalService().Stats()
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Println("No categories yet.")
			return nil
		}

		header.Printf("%-16s  %5s  %11s  %9s  %8s  %6s  %8s  %6s\n",
			"CATEGORY", "POSTS", "IMPRESSIONS", "REACTIONS", "COMMENTS", "SHARES", "AVG IMPR", "ENG%")
		for _, s := range stats {
			fmt.Printf("%-16s  %5d  %11d  %9d  %8d  %6d  %8.1f  %6.2f\n",
				s.Category, s.PostCount, s.TotalImpressions, s.TotalReactions,
				s.TotalComments, s.TotalShares, s.AvgImpressions, s.EngagementRate)
		}
		return nil
	},
}

// detail command
var detailCmd = &cobra.Command{
	Use:   "detail",
	Short: "Show per-post metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("Detail")
		if err != nil {
			return err
		}
		defer a.Close()

		posts, err := a.LocalService().Detail(category, limit)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			fmt.Println("No posts found.")
			return nil
		}

		header.Printf("%-16s  %-12s  %11s  %9s  %8s  %s\n",
			"POSTED", "CATEGORY", "IMPRESSIONS", "REACTIONS", "COMMENTS", "PREVIEW")
		for _, p := range posts {
			cat := p.Category
			if cat == "" {
				cat = "-"
			}
			if p.Metrics == nil {
				fmt.Printf("%-16s  %-12s  %11s  %9s  %8s  %s\n",
					p.PostedAt.Local().Format("2006-01-02 15:04"), cat,
					"-", "-", "-", oneLine(p.ContentPreview, 40))
				continue
			}
			fmt.Printf("%-16s  %-12s  %11d  %9d  %8d  %s\n",
				p.PostedAt.Local().Format("2006-01-02 15:04"), cat,
				p.Metrics.Impressions, p.Metrics.Reactions, p.Metrics.Comments,
				oneLine(p.ContentPreview, 40))
		}
		return nil
	},
}

func init() {
	logMetricsCmd.Flags().Int64("id", 0, "Local post ID (alternative to the URN argument)")
	logMetricsCmd.Flags().Int64("impressions", 0, "Impression count")
	logMetricsCmd.Flags().Int64("reactions", 0, "Reaction count")
	logMetricsCmd.Flags().Int64("comments", 0, "Comment count")
	logMetricsCmd.Flags().Int64("shares", 0, "Share/repost count")
	logMetricsCmd.Flags().Int64("clicks", 0, "Click count")
	logMetricsCmd.Flags().Int64("profile-views", 0, "Profile views attributed to the post")
	logMetricsCmd.Flags().Int64("follower-gains", 0, "Followers gained from the post")

	collectCmd.Flags().Int("days", 30, "How many days back to query analytics for")

	detailCmd.Flags().StringP("category", "c", "", "Only show posts in this category")
	detailCmd.Flags().IntP("limit", "n", 20, "Maximum number of posts to show")

	rootCmd.AddCommand(logMetricsCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(detailCmd)
}
