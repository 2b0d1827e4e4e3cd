package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err, "open test store")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL falls back to "memory" for in-memory databases.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestSequenceIsShared(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.seq.Next(ctx)
	require.NoError(t, err)
	b, err := s.seq.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, a+1, b)
}

func TestLLMEvents_AppendQueryGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	for i, purpose := range []string{"analyze", "ask", "analyze"} {
		err := repo.AppendLLMRequest(ctx, LLMRequestEventData{
			Provider:     "mock",
			Model:        "mock",
			Purpose:      purpose,
			InputTokens:  10 * (i + 1),
			OutputTokens: 5,
			LatencyMs:    int64(100 + i),
			CostUSD:      0.001,
			Success:      i != 1,
			ErrorMessage: map[bool]string{true: "", false: "boom"}[i != 1],
		})
		require.NoError(t, err)
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Greater(t, all[0].Sequence, all[1].Sequence)
	assert.Equal(t, 30, all[0].InputTokens)

	analyze, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "analyze", Limit: 1})
	require.NoError(t, err)
	require.Len(t, analyze, 1)
	assert.Equal(t, "analyze", analyze[0].Purpose)

	ev, err := repo.GetLLMEvent(ctx, all[1].ID)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.False(t, ev.Success)
	assert.Equal(t, "boom", ev.ErrorMessage)

	missing, err := repo.GetLLMEvent(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTurns_SaveIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	repo := s.TurnRepo()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rec := TurnRecord{
		SessionID:     "s-1",
		Number:        1,
		Explanation:   "It divides the array in half each time",
		Question:      "When does it stop?",
		Path:          "local-fallback",
		DurationMs:    42,
		Confidence:    0.6,
		Clarity:       0.5,
		KnowledgeGaps: []string{"termination condition"},
		CreatedAt:     now,
	}
	require.NoError(t, repo.SaveTurn(ctx, rec))
	rec.EnrichmentStatus = "skipped"
	require.NoError(t, repo.SaveTurn(ctx, rec))

	rec2 := rec
	rec2.Number = 2
	rec2.Path = "remote"
	require.NoError(t, repo.SaveTurn(ctx, rec2))

	turns, err := repo.TurnsForSession(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, 1, turns[0].Number)
	assert.Equal(t, "skipped", turns[0].EnrichmentStatus)
	assert.Equal(t, []string{"termination condition"}, turns[0].KnowledgeGaps)
	assert.Nil(t, turns[0].Strengths)
	assert.True(t, turns[0].CreatedAt.Equal(now))
	assert.Equal(t, "remote", turns[1].Path)
}

func TestSessions_SaveListStats(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.SaveSession(ctx, SessionRecord{
		ID: "a", Owner: "u1", Topic: "Binary Search", Mode: "socratic", Status: "active",
		CreatedAt: base,
	}))
	// Completion overwrites the header.
	require.NoError(t, repo.SaveSession(ctx, SessionRecord{
		ID: "a", Owner: "u1", Topic: "Binary Search", Mode: "socratic", Status: "completed",
		TurnCount: 4, AvgConfidence: 0.8, AvgClarity: 0.6,
		CreatedAt: base, CompletedAt: base.Add(time.Hour),
	}))
	require.NoError(t, repo.SaveSession(ctx, SessionRecord{
		ID: "b", Owner: "u1", Topic: "Recursion", Mode: "anxious", Status: "active",
		TurnCount: 2, AvgConfidence: 0.4, AvgClarity: 0.4,
		CreatedAt: base.Add(time.Minute),
	}))
	require.NoError(t, repo.SaveSession(ctx, SessionRecord{
		ID: "c", Owner: "u2", Topic: "Graphs", Mode: "contrarian", Status: "active",
		CreatedAt: base,
	}))

	list, err := repo.ListSessions(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "completed", list[1].Status)

	stats, err := repo.UserStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.CompletedSessions)
	assert.Equal(t, 6, stats.TotalTurns)
	assert.Equal(t, 2, stats.UniqueTopics)
	assert.InDelta(t, 0.6, stats.AvgConfidence, 1e-9)
	assert.InDelta(t, 0.5, stats.AvgClarity, 1e-9)
}

func TestAnalytics_Latest(t *testing.T) {
	s := openTestStore(t)
	repo := s.AnalyticsRepo()
	ctx := context.Background()

	none, err := repo.LatestAnalytics(ctx, "s-1")
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, n := range []int{5, 10} {
		payload, _ := json.Marshal(map[string]int{"total_turns": n})
		require.NoError(t, repo.SaveAnalytics(ctx, AnalyticsRecord{
			SessionID: "s-1", TurnCount: n, Payload: payload, CreatedAt: time.Now(),
		}))
	}

	latest, err := repo.LatestAnalytics(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 10, latest.TurnCount)
	assert.JSONEq(t, `{"total_turns":10}`, string(latest.Payload))
}

func TestReviewItems_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	repo := s.ReviewRepo()
	ctx := context.Background()
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveReviewItem(ctx, ReviewItemRecord{
		Owner: "u1", Topic: "Recursion", EaseFactor: 2.5, Repetitions: 0, IntervalDays: 1,
		NextDue: due.Add(24 * time.Hour),
	}))
	require.NoError(t, repo.SaveReviewItem(ctx, ReviewItemRecord{
		Owner: "u1", Topic: "Binary Search", EaseFactor: 2.6, Repetitions: 1, IntervalDays: 1,
		NextDue: due, LastReviewed: due.Add(-24 * time.Hour), History: []int{5},
	}))
	// Update in place.
	require.NoError(t, repo.SaveReviewItem(ctx, ReviewItemRecord{
		Owner: "u1", Topic: "Binary Search", EaseFactor: 2.5, Repetitions: 2, IntervalDays: 6,
		NextDue: due.Add(6 * 24 * time.Hour), History: []int{5, 4},
	}))

	items, err := repo.LoadReviewItems(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Recursion", items[0].Topic)
	assert.Equal(t, "Binary Search", items[1].Topic)
	assert.Equal(t, 6, items[1].IntervalDays)
	assert.Equal(t, []int{5, 4}, items[1].History)
	assert.True(t, items[1].LastReviewed.IsZero())

	other, err := repo.LoadReviewItems(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestKnowledge_RunningAveragesAndEdges(t *testing.T) {
	s := openTestStore(t)
	repo := s.KnowledgeRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.RecordTeaching(ctx, TeachingRecord{
		Owner: "u1", Topic: "Binary Search", Confidence: 0.4, Clarity: 0.6,
		Related: []string{"Sorted arrays"}, Gaps: []string{"termination"}, At: now,
	})
	require.NoError(t, err)
	node, err := repo.RecordTeaching(ctx, TeachingRecord{
		Owner: "u1", Topic: "Binary Search", Confidence: 0.8, Clarity: 1.0,
		Related: []string{"Sorted arrays", "Big-O"}, At: now.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, node.TimesTaught)
	assert.InDelta(t, 0.6, node.AvgConfidence, 1e-9)
	assert.InDelta(t, 0.8, node.AvgClarity, 1e-9)
	assert.Equal(t, []string{"Sorted arrays", "Big-O"}, node.RelatedConcepts)
	assert.Equal(t, []string{"termination"}, node.PersistentGaps)

	var edge *KnowledgeEdge
	for i := 0; i < 15; i++ {
		edge, err = repo.LinkConcepts(ctx, KnowledgeEdge{Owner: "u1", From: "Binary Search", To: "Big-O"})
		require.NoError(t, err)
	}
	assert.Equal(t, "related_to", edge.Relationship)
	assert.InDelta(t, maxEdgeStrength, edge.Strength, 1e-9)

	nodes, edges, err := repo.Graph(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Len(t, edges, 1)
	assert.InDelta(t, maxEdgeStrength, edges[0].Strength, 1e-9)
}
