package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linktrack/internal/tracker"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

// parseWhen resolves the --at / --in flags into a concrete time.
// --at accepts "2006-01-02 15:04" (local) or RFC 3339; --in accepts a
// Go duration like "2h".
func parseWhen(cmd *cobra.Command, now time.Time) (time.Time, error) {
	at, _ := cmd.Flags().GetString("at")
	in, _ := cmd.Flags().GetString("in")

	switch {
	case at != "" && in != "":
		return time.Time{}, fmt.Errorf("--at and --in are mutually exclusive")
	case in != "":
		d, err := time.ParseDuration(in)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --in duration: %w", err)
		}
		return now.Add(d), nil
	case at != "":
		if t, err := time.ParseInLocation("2006-01-02 15:04", at, time.Local); err == nil {
			return t, nil
		}
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --at time (use '2006-01-02 15:04' or RFC 3339): %q", at)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("when to publish is required: use --at or --in")
	}
}

// schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule [TEXT]",
	Short: "Queue a post for future publication",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Schedule")
		if err != nil {
			return err
		}
		defer a.Close()

		content, err := readContent(cmd, args)
		if err != nil {
			return err
		}
		when, err := parseWhen(cmd, time.Now())
		if err != nil {
			return err
		}
		v, err := visibilityFlag(cmd, a.Config().Posting.DefaultVisibility)
		if err != nil {
			return err
		}

		category, _ := cmd.Flags().GetString("category")
		article, _ := cmd.Flags().GetString("article")

		id, err := a.LocalService().Schedule(tracker.ScheduleParams{
			Content:      content,
			CategoryName: category,
			ArticleURL:   article,
			Visibility:   v,
			ScheduledFor: when,
		})
		if err != nil {
			return err
		}

		okText.Printf("Scheduled #%d for %s\n", id, when.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

// queue command
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List scheduled posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp("Queue")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.LocalService().ListScheduled(all)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("The queue is empty.")
			return nil
		}

		header.Printf("%-4s  %-16s  %-10s  %-12s  %s\n", "ID", "SCHEDULED", "STATUS", "CATEGORY", "CONTENT")
		for _, item := range items {
			status := string(item.Status)
			switch item.Status {
			case tracker.StatusPublished:
				status = okText.Sprint(status)
			case tracker.StatusFailed:
				status = errText.Sprint(status)
			}
			fmt.Printf("%-4d  %-16s  %-10s  %-12s  %s\n",
				item.ID,
				item.ScheduledFor.Local().Format("2006-01-02 15:04"),
				status,
				item.CategoryName,
				oneLine(item.Content, 50),
			)
			if item.ErrorMessage != "" {
				dimText.Printf("      error: %s\n", oneLine(item.ErrorMessage, 70))
			}
		}
		return nil
	},
}

// cancel command
var cancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Cancel a pending scheduled post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			return fmt.Errorf("invalid ID %q", args[0])
		}

		a, err := newApp("Cancel")
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.LocalService().Cancel(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("#%d is not pending (already published, failed, or never existed)", id)
		}

		okText.Printf("Cancelled #%d\n", id)
		return nil
	},
}

// publish-due command
var publishDueCmd = &cobra.Command{
	Use:   "publish-due",
	Short: "Publish every scheduled post whose time has come",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("PublishDue")
		if err != nil {
			return err
		}
		defer a.Close()

		engine, err := a.Engine()
		if err != nil {
			return err
		}

		published, failed, err := engine.PublishDuePosts(cmd.Context())
		if err != nil {
			return fmt.Errorf("publish run aborted (published=%d failed=%d): %w", published, failed, err)
		}

		switch {
		case published == 0 && failed == 0:
			fmt.Println("Nothing due.")
		case failed > 0:
			errText.Printf("Published %d, failed %d (see 'linktrack queue --all')\n", published, failed)
		default:
			okText.Printf("Published %d post(s)\n", published)
		}
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the publisher on an interval until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Watch")
		if err != nil {
			return err
		}
		defer a.Close()

		interval := a.Config().Scheduler.Interval
		if override, _ := cmd.Flags().GetString("interval"); override != "" {
			interval = override
		}
		if _, err := time.ParseDuration(interval); err != nil {
			return fmt.Errorf("invalid interval %q: %w", interval, err)
		}

		engine, err := a.Engine()
		if err != nil {
			return err
		}

		run := func() {
			published, failed, err := engine.PublishDuePosts(context.Background())
			switch {
			case err != nil:
				errText.Printf("[%s] run aborted: %v\n", time.Now().Format("15:04:05"), err)
			case published > 0 || failed > 0:
				fmt.Printf("[%s] published %d, failed %d\n", time.Now().Format("15:04:05"), published, failed)
			}
		}

		fmt.Printf("Watching the queue every %s. Ctrl-C to stop.\n", interval)
		run() // immediate first pass; the trigger only fires after one interval

		c := cron.New()
		if err := c.AddFunc("@every "+interval, run); err != nil {
			return fmt.Errorf("installing trigger: %w", err)
		}
		c.Start()
		defer c.Stop()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		fmt.Println("\nStopping.")
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringP("category", "c", "", "Category to file the post under")
	scheduleCmd.Flags().StringP("file", "f", "", "Read the post text from a file")
	scheduleCmd.Flags().String("article", "", "URL to attach as an article")
	scheduleCmd.Flags().String("visibility", "", "PUBLIC, CONNECTIONS, or LOGGED_IN")
	scheduleCmd.Flags().String("at", "", "Publish at this time, e.g. '2026-09-01 09:00'")
	scheduleCmd.Flags().String("in", "", "Publish after this duration, e.g. '2h'")

	queueCmd.Flags().BoolP("all", "a", false, "Include published and failed items")

	watchCmd.Flags().String("interval", "", "Override the configured interval, e.g. '1m'")

	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(publishDueCmd)
	rootCmd.AddCommand(watchCmd)
}
