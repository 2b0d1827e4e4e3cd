package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rodrick-mpofu/teachback-ai/internal/spacedrep"
	"github.com/rodrick-mpofu/teachback-ai/internal/ui/theme"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Inspect and record spaced-repetition reviews",
}

// withReviews runs fn against an SM-2 scheduler over the store. Review
// commands never need a model provider.
func withReviews(cmd *cobra.Command, fn func(s *spacedrep.Scheduler, owner string) error) error {
	b, err := openBase(cmd)
	if err != nil {
		return err
	}
	defer b.close()

	sink, closeSink := b.sink(cmd.Context())
	defer closeSink()
	return fn(spacedrep.NewScheduler(b.store.ReviewRepo(), sink, b.log), b.cfg.Owner)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

var reviewDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List topics due for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReviews(cmd, func(s *spacedrep.Scheduler, owner string) error {
			items := s.DueItems(cmd.Context(), owner, time.Now().UTC())
			out := cmd.OutOrStdout()
			if asJSON(cmd) {
				return printJSON(out, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, theme.Good.Render("Nothing due. Nice work."))
				return nil
			}
			fmt.Fprintln(out, theme.Title.Render(fmt.Sprintf("%d topics due", len(items))))
			printItems(out, items)
			return nil
		})
	},
}

var reviewRecordCmd = &cobra.Command{
	Use:   "record <topic> <quality 0-5>",
	Short: "Record a review of a topic",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := strconv.Atoi(args[len(args)-1])
		if err != nil {
			return fmt.Errorf("quality must be an integer 0-5: %w", spacedrep.ErrInvalidQuality)
		}
		topic := strings.Join(args[:len(args)-1], " ")

		return withReviews(cmd, func(s *spacedrep.Scheduler, owner string) error {
			item, err := s.RecordReview(cmd.Context(), owner, topic, q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON(cmd) {
				return printJSON(out, item)
			}
			fmt.Fprintf(out, "%s %s: next review %s (in %d days, ease %.2f)\n",
				theme.Good.Render("Recorded"), item.Topic,
				item.NextDue.Local().Format(time.DateOnly), item.IntervalDays, item.EaseFactor)
			return nil
		})
	},
}

var reviewScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show overdue and upcoming reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		return withReviews(cmd, func(s *spacedrep.Scheduler, owner string) error {
			sched := s.Schedule(cmd.Context(), owner, days)
			out := cmd.OutOrStdout()
			if asJSON(cmd) {
				return printJSON(out, sched)
			}

			if len(sched.Overdue) > 0 {
				fmt.Fprintln(out, theme.Bad.Render("Overdue"))
				for _, o := range sched.Overdue {
					fmt.Fprintf(out, "  %-32s %d days overdue\n", o.Topic, o.DaysOverdue)
				}
			}
			dates := make([]string, 0, len(sched.Upcoming))
			for d := range sched.Upcoming {
				dates = append(dates, d)
			}
			sort.Strings(dates)
			for _, d := range dates {
				fmt.Fprintln(out, theme.Title.Render(d))
				printItems(out, sched.Upcoming[d])
			}
			if len(sched.Overdue) == 0 && len(dates) == 0 {
				fmt.Fprintf(out, "No reviews in the next %d days.\n", sched.Days)
			}
			return nil
		})
	},
}

var reviewStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the review load",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReviews(cmd, func(s *spacedrep.Scheduler, owner string) error {
			st := s.Stats(cmd.Context(), owner)
			out := cmd.OutOrStdout()
			if asJSON(cmd) {
				return printJSON(out, st)
			}
			fmt.Fprintln(out, theme.Label.Render("Topics"), st.TotalItems)
			fmt.Fprintln(out, theme.Label.Render("Due now"), st.DueNow)
			fmt.Fprintln(out, theme.Label.Render("Due 7 days"), st.DueWeek)
			fmt.Fprintln(out, theme.Label.Render("Due 30 days"), st.DueMonth)
			if len(st.MostOverdue) > 0 {
				fmt.Fprintln(out, theme.Hint.Render("Most overdue"))
				for _, o := range st.MostOverdue {
					fmt.Fprintf(out, "  %-32s %d days\n", o.Topic, o.DaysOverdue)
				}
			}
			return nil
		})
	},
}

var reviewSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest topics for a review session",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withReviews(cmd, func(s *spacedrep.Scheduler, owner string) error {
			items := s.Suggest(cmd.Context(), owner, limit)
			out := cmd.OutOrStdout()
			if asJSON(cmd) {
				return printJSON(out, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "Nothing to review in the next two days.")
				return nil
			}
			printItems(out, items)
			return nil
		})
	},
}

func printItems(w io.Writer, items []spacedrep.Item) {
	for _, it := range items {
		fmt.Fprintf(w, "  %-32s due %s  interval %3dd  ease %.2f\n",
			truncate(it.Topic, 32), it.NextDue.Local().Format(time.DateOnly), it.IntervalDays, it.EaseFactor)
	}
}

func init() {
	reviewCmd.PersistentFlags().Bool("json", false, "Print JSON")
	reviewScheduleCmd.Flags().Int("days", spacedrep.DefaultScheduleDays, "Days ahead to include")
	reviewSuggestCmd.Flags().IntP("limit", "n", spacedrep.DefaultSuggestMax, "Maximum topics to suggest")

	reviewCmd.AddCommand(reviewDueCmd)
	reviewCmd.AddCommand(reviewRecordCmd)
	reviewCmd.AddCommand(reviewScheduleCmd)
	reviewCmd.AddCommand(reviewStatsCmd)
	reviewCmd.AddCommand(reviewSuggestCmd)
}
