// Package analytics derives per-session learning analytics and schedules
// their computation in the background.
package analytics

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
	TrendNoData    Trend = "no_data"
)

const (
	trendMargin     = 0.1
	maxReviewTopics = 5
)

// Input is the data a snapshot is computed from.
type Input struct {
	SessionID string
	Topic     string
	Analyses  []tutor.AnalysisResult
}

func (in Input) clone() Input {
	c := in
	c.Analyses = make([]tutor.AnalysisResult, len(in.Analyses))
	for i, a := range in.Analyses {
		a.KnowledgeGaps = append([]string(nil), a.KnowledgeGaps...)
		a.UnexplainedJargon = append([]string(nil), a.UnexplainedJargon...)
		a.Strengths = append([]string(nil), a.Strengths...)
		c.Analyses[i] = a
	}
	return c
}

type Snapshot struct {
	SessionID             string    `json:"session_id"`
	Topic                 string    `json:"topic"`
	LearningCurve         []float64 `json:"learning_curve"`
	ConfidenceOverTime    []float64 `json:"confidence_over_time"`
	ClarityTrend          Trend     `json:"clarity_trend"`
	PersistentGaps        []string  `json:"persistent_gaps"`
	SuggestedReviewTopics []string  `json:"suggested_review_topics"`
	TotalTurns            int       `json:"total_turns"`
	AverageConfidence     float64   `json:"average_confidence"`
	AverageClarity        float64   `json:"average_clarity"`
	ComputedAt            time.Time `json:"computed_at"`
}

// Compute is pure apart from stamping now.
func Compute(in Input, now time.Time) Snapshot {
	n := len(in.Analyses)
	snap := Snapshot{
		SessionID:             in.SessionID,
		Topic:                 in.Topic,
		LearningCurve:         make([]float64, 0, n),
		ConfidenceOverTime:    make([]float64, 0, n),
		PersistentGaps:        []string{},
		SuggestedReviewTopics: []string{},
		TotalTurns:            n,
		ComputedAt:            now,
	}
	if n == 0 {
		snap.ClarityTrend = TrendNoData
		return snap
	}

	var sumConf, sumClar float64
	gapCount := make(map[string]int)
	var gapOrder, jargon []string
	for _, a := range in.Analyses {
		snap.LearningCurve = append(snap.LearningCurve, a.Clarity)
		snap.ConfidenceOverTime = append(snap.ConfidenceOverTime, a.Confidence)
		sumConf += a.Confidence
		sumClar += a.Clarity
		for _, g := range a.KnowledgeGaps {
			if gapCount[g] == 0 {
				gapOrder = append(gapOrder, g)
			}
			gapCount[g]++
		}
		jargon = append(jargon, a.UnexplainedJargon...)
	}

	snap.AverageConfidence = round2(sumConf / float64(n))
	snap.AverageClarity = round2(sumClar / float64(n))
	snap.ClarityTrend = trend(snap.LearningCurve)

	for _, g := range gapOrder {
		if gapCount[g] > 1 {
			snap.PersistentGaps = append(snap.PersistentGaps, g)
		}
	}
	topics := tutor.Dedupe(append(append([]string{}, snap.PersistentGaps...), jargon...))
	if len(topics) > maxReviewTopics {
		topics = topics[:maxReviewTopics]
	}
	snap.SuggestedReviewTopics = topics
	return snap
}

// trend compares the mean of the first third with the mean of the last
// third of values.
func trend(values []float64) Trend {
	if len(values) < 3 {
		return TrendStable
	}
	k := len(values) / 3
	first := mean(values[:k])
	last := mean(values[len(values)-k:])
	switch {
	case last > first+trendMargin:
		return TrendImproving
	case last < first-trendMargin:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(vs []float64) float64 {
	var s float64
	for _, v := range vs {
		s += v
	}
	return s / float64(len(vs))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeBatch computes one snapshot per input with at most limit running
// at once. Results keep input order.
func ComputeBatch(ctx context.Context, inputs []Input, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 4
	}
	out := make([]Snapshot, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	now := time.Now().UTC()
	for i := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = Compute(inputs[i], now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
