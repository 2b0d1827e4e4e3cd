package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rodrick-mpofu/teachback-ai/internal/analytics"
	"github.com/rodrick-mpofu/teachback-ai/internal/store"
	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
	"github.com/rodrick-mpofu/teachback-ai/internal/ui/theme"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics and per-session analytics",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("sessions")
		b, err := openBase(cmd)
		if err != nil {
			return err
		}
		defer b.close()

		ctx := cmd.Context()
		owner := b.cfg.Owner
		st, err := b.store.SessionRepo().UserStats(ctx, owner)
		if err != nil {
			return fmt.Errorf("user stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, theme.Title.Render("Learning statistics for "+owner))
		fmt.Fprintln(out, theme.Label.Render("Sessions"), fmt.Sprintf("%d (%d completed)", st.TotalSessions, st.CompletedSessions))
		fmt.Fprintln(out, theme.Label.Render("Turns"), st.TotalTurns)
		fmt.Fprintln(out, theme.Label.Render("Topics"), st.UniqueTopics)
		fmt.Fprintln(out, theme.Label.Render("Confidence"), theme.ScoreBar(st.AvgConfidence, 20))
		fmt.Fprintln(out, theme.Label.Render("Clarity"), theme.ScoreBar(st.AvgClarity, 20))

		sessions, err := b.store.SessionRepo().ListSessions(ctx, owner, limit)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(sessions) == 0 {
			return nil
		}

		inputs := make([]analytics.Input, 0, len(sessions))
		for _, s := range sessions {
			turns, err := b.store.TurnRepo().TurnsForSession(ctx, s.ID)
			if err != nil {
				return fmt.Errorf("turns for %s: %w", s.ID, err)
			}
			inputs = append(inputs, analytics.Input{SessionID: s.ID, Topic: s.Topic, Analyses: analysesOf(turns)})
		}
		snaps, err := analytics.ComputeBatch(ctx, inputs, 0)
		if err != nil {
			return err
		}

		fmt.Fprintln(out)
		fmt.Fprintf(out, "%-28s  %-10s  %5s  %6s  %-10s  %s\n", "Topic", "Status", "Turns", "Conf", "Clarity", "Gaps")
		for i, snap := range snaps {
			fmt.Fprintf(out, "%-28s  %-10s  %5d  %5.0f%%  %-10s  %d\n",
				truncate(snap.Topic, 28), sessions[i].Status, snap.TotalTurns,
				snap.AverageConfidence*100, snap.ClarityTrend, len(snap.PersistentGaps))
		}
		return nil
	},
}

func analysesOf(turns []store.TurnRecord) []tutor.AnalysisResult {
	out := make([]tutor.AnalysisResult, len(turns))
	for i, t := range turns {
		out[i] = tutor.AnalysisResult{
			Confidence:        t.Confidence,
			Clarity:           t.Clarity,
			KnowledgeGaps:     t.KnowledgeGaps,
			UnexplainedJargon: t.UnexplainedJargon,
			Strengths:         t.Strengths,
		}
	}
	return out
}

func init() {
	statsCmd.Flags().IntP("sessions", "n", 10, "Recent sessions to analyse")
}
