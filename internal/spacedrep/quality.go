package spacedrep

import (
	"math"

	"github.com/rodrick-mpofu/teachback-ai/internal/tutor"
)

// qualityThresholds maps a penalised performance score to SM-2 quality.
// Scores below the last step map to 0.
var qualityThresholds = []struct {
	min     float64
	quality int
}{
	{0.95, 5},
	{0.85, 4},
	{0.70, 3},
	{0.50, 2},
	{0.30, 1},
}

// epsilon absorbs float error at exact threshold values such as 0.7.
const epsilon = 1e-9

// GapPenalty returns the multiplier applied for a mean of meanGaps knowledge
// gaps per turn: 1.0 with none, falling linearly to 0.8 at one gap, then
// 0.05 per extra gap down to 0.5.
func GapPenalty(meanGaps float64) float64 {
	switch {
	case meanGaps <= 0:
		return 1.0
	case meanGaps < 1:
		return 1.0 - 0.2*meanGaps
	}
	return math.Max(0.5, 0.8-0.05*(meanGaps-1))
}

// PerformanceScore is the mean of (confidence+clarity)/2 over analyses,
// scaled by GapPenalty.
func PerformanceScore(analyses []tutor.AnalysisResult) float64 {
	if len(analyses) == 0 {
		return 0
	}
	var perf, gaps float64
	for _, a := range analyses {
		a = a.Clamped()
		perf += (a.Confidence + a.Clarity) / 2
		gaps += float64(len(a.KnowledgeGaps))
	}
	n := float64(len(analyses))
	return (perf / n) * GapPenalty(gaps/n)
}

// DeriveQuality converts a session's analyses into an SM-2 quality in
// [0,5]. An empty history yields 0.
func DeriveQuality(analyses []tutor.AnalysisResult) int {
	score := PerformanceScore(analyses)
	for _, t := range qualityThresholds {
		if score+epsilon >= t.min {
			return t.quality
		}
	}
	return 0
}
