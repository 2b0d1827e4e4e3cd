package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rodrick-mpofu/teachback-ai/internal/analytics"
	"github.com/rodrick-mpofu/teachback-ai/internal/engine"
	"github.com/rodrick-mpofu/teachback-ai/internal/persona"
	"github.com/rodrick-mpofu/teachback-ai/internal/session"
	"github.com/rodrick-mpofu/teachback-ai/internal/ui/theme"
)

const analyticsDrainWait = 3 * time.Second

var teachCmd = &cobra.Command{
	Use:   "teach <topic>",
	Short: "Teach a topic to an AI student in the terminal",
	Long: "Starts an interactive session. Type an explanation and press enter.\n" +
		"Commands: /summary shows progress, /done completes the session and\n" +
		"schedules a review, /quit leaves without completing.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		t := &tutorial{
			eng:   a.engine,
			owner: a.cfg.Owner,
			out:   cmd.OutOrStdout(),
		}
		return t.run(cmd.Context(), strings.Join(args, " "), mode, cmd.InOrStdin())
	},
}

func init() {
	modes := make([]string, 0, 4)
	for _, p := range persona.All() {
		modes = append(modes, string(p.Mode))
	}
	teachCmd.Flags().StringP("mode", "m", string(persona.Socratic), "Student persona: "+strings.Join(modes, ", "))
}

// tutorial is one interactive session in the terminal.
type tutorial struct {
	eng     *engine.Engine
	owner   string
	out     io.Writer
	id      string
	pending []analytics.Handle
}

func (t *tutorial) run(ctx context.Context, topic, mode string, in io.Reader) error {
	created, err := t.eng.CreateSession(ctx, t.owner, topic, mode)
	if err != nil {
		return err
	}
	t.id = created.SessionID

	p, _ := persona.Lookup(created.Mode)
	fmt.Fprintln(t.out, theme.Title.Render("Teaching: "+topic))
	fmt.Fprintln(t.out, theme.Persona.Render(p.Title+":"), theme.Body.Render(created.Welcome))
	fmt.Fprintln(t.out, theme.Hint.Render("/summary  /done  /quit"))

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines := readLines(readCtx, in)
	for {
		t.drainAnalytics()
		fmt.Fprint(t.out, "\n> ")

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(t.out)
			return t.eng.Teardown(t.id)
		case line, ok = <-lines:
		}
		if !ok {
			return t.finish(ctx)
		}

		switch line = strings.TrimSpace(line); line {
		case "":
			continue
		case "/quit":
			return t.eng.Teardown(t.id)
		case "/done":
			return t.finish(ctx)
		case "/summary":
			if err := t.printSummary(); err != nil {
				return err
			}
			continue
		}

		out, err := t.eng.SubmitTurn(ctx, t.id, line)
		if err != nil {
			if errors.Is(err, session.ErrEmptyExplanation) {
				continue
			}
			fmt.Fprintln(t.out, theme.Bad.Render("Turn failed:"), err)
			fmt.Fprintln(t.out, theme.Hint.Render("Nothing was recorded. Try again."))
			continue
		}
		t.printTurn(p, out)
		if out.AnalyticsHandle != "" {
			t.pending = append(t.pending, out.AnalyticsHandle)
		}
	}
}

func (t *tutorial) printTurn(p persona.Persona, out engine.TurnOutcome) {
	a := out.Turn.Analysis
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, theme.Label.Render("Confidence"), theme.ScoreBar(a.Confidence, 20))
	fmt.Fprintln(t.out, theme.Label.Render("Clarity"), theme.ScoreBar(a.Clarity, 20))
	if s := theme.Bullets("Strengths", a.Strengths); s != "" {
		fmt.Fprintln(t.out, s)
	}
	if s := theme.Bullets("Gaps", a.KnowledgeGaps); s != "" {
		fmt.Fprintln(t.out, s)
	}
	if s := theme.Bullets("Unexplained jargon", a.UnexplainedJargon); s != "" {
		fmt.Fprintln(t.out, s)
	}
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, theme.Persona.Render(p.Title+":"), theme.Question.Render(out.Turn.Question))
}

// drainAnalytics prints every analytics snapshot that has become ready.
func (t *tutorial) drainAnalytics() {
	kept := t.pending[:0]
	for _, h := range t.pending {
		res, err := t.eng.PollAnalytics(h)
		if err != nil {
			continue
		}
		switch res.State {
		case analytics.StatePending:
			kept = append(kept, h)
		case analytics.StateReady:
			t.printInsights(*res.Snapshot)
		}
	}
	t.pending = kept
}

func (t *tutorial) printInsights(s analytics.Snapshot) {
	body := fmt.Sprintf("After %d turns: clarity %s, average confidence %.0f%%",
		s.TotalTurns, s.ClarityTrend, s.AverageConfidence*100)
	if b := theme.Bullets("Persistent gaps", s.PersistentGaps); b != "" {
		body += "\n" + b
	}
	fmt.Fprintln(t.out, theme.Card.Render(body))
}

func (t *tutorial) printSummary() error {
	sum, err := t.eng.Summary(t.id)
	if err != nil {
		return err
	}
	fmt.Fprintln(t.out, theme.Card.Render(fmt.Sprintf(
		"%s\n%s %d\n%s %s\n%s %s",
		theme.Title.Render(sum.Topic),
		theme.Label.Render("Turns"), sum.TurnCount,
		theme.Label.Render("Confidence"), theme.ScoreBar(sum.AvgConfidence, 20),
		theme.Label.Render("Clarity"), theme.ScoreBar(sum.AvgClarity, 20),
	)))
	if b := theme.Bullets("Persistent gaps", sum.PersistentGaps); b != "" {
		fmt.Fprintln(t.out, b)
	}
	return nil
}

func (t *tutorial) finish(ctx context.Context) error {
	if len(t.pending) > 0 {
		wctx, cancel := context.WithTimeout(ctx, analyticsDrainWait)
		for _, h := range t.pending {
			_, _ = t.eng.WaitAnalytics(wctx, h)
		}
		cancel()
		t.drainAnalytics()
	}

	res, err := t.eng.CompleteSession(ctx, t.id)
	if err != nil {
		return err
	}
	if err := t.printSummary(); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return err
	}
	if res.Review == nil {
		fmt.Fprintln(t.out, theme.Hint.Render("No turns, so no review was scheduled."))
		return nil
	}
	fmt.Fprintf(t.out, "%s quality %d, next review %s (in %d days)\n",
		theme.Good.Render("Review scheduled:"), res.Quality,
		res.Review.NextDue.Local().Format(time.DateOnly), res.Review.IntervalDays)
	return nil
}

// readLines feeds r line by line until EOF or ctx ends.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
