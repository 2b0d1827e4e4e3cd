package session

import (
	"math"

	"github.com/rodrick-mpofu/teachback-ai/internal/persona"
)

type Summary struct {
	SessionID      string       `json:"session_id"`
	Owner          string       `json:"owner"`
	Topic          string       `json:"topic"`
	Mode           persona.Mode `json:"mode"`
	Status         Status       `json:"status"`
	TurnCount      int          `json:"turn_count"`
	AvgConfidence  float64      `json:"avg_confidence"`
	AvgClarity     float64      `json:"avg_clarity"`
	PersistentGaps []string     `json:"persistent_gaps"`
}

// Summarize reduces a session to its headline numbers. Averages are
// rounded to two decimals; a gap is persistent once it shows up in more
// than one turn.
func Summarize(s Session) Summary {
	out := Summary{
		SessionID:      s.ID,
		Owner:          s.Owner,
		Topic:          s.Topic,
		Mode:           s.Mode,
		Status:         s.Status,
		TurnCount:      len(s.Turns),
		PersistentGaps: []string{},
	}
	if len(s.Turns) == 0 {
		return out
	}

	var conf, clar float64
	counts := make(map[string]int)
	var order []string
	for _, t := range s.Turns {
		conf += t.Analysis.Confidence
		clar += t.Analysis.Clarity
		for _, g := range t.Analysis.KnowledgeGaps {
			if counts[g] == 0 {
				order = append(order, g)
			}
			counts[g]++
		}
	}
	n := float64(len(s.Turns))
	out.AvgConfidence = round2(conf / n)
	out.AvgClarity = round2(clar / n)
	for _, g := range order {
		if counts[g] > 1 {
			out.PersistentGaps = append(out.PersistentGaps, g)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
