package spacedrep

import (
	"context"
	"sort"
	"time"
)

const (
	DefaultScheduleDays = 7
	DefaultSuggestMax   = 10
	// suggestLookahead pulls items due soon into a suggested session.
	suggestLookahead = 2 * day
	mostOverdueCount = 5
)

// OverdueItem is a due item with how far past due it is.
type OverdueItem struct {
	Item
	DaysOverdue int `json:"days_overdue"`
}

// Schedule is an owner's review calendar.
type Schedule struct {
	Overdue []OverdueItem `json:"overdue"`
	// Upcoming groups items due within the window by YYYY-MM-DD.
	Upcoming map[string][]Item `json:"upcoming"`
	Days     int               `json:"days"`
}

// Stats summarises an owner's review load.
type Stats struct {
	TotalItems  int           `json:"total_items"`
	DueNow      int           `json:"due_now"`
	DueWeek     int           `json:"due_within_7_days"`
	DueMonth    int           `json:"due_within_30_days"`
	MostOverdue []OverdueItem `json:"most_overdue"`
}

// Schedule returns overdue items and the items due in the next days days.
// days <= 0 selects DefaultScheduleDays.
func (s *Scheduler) Schedule(ctx context.Context, owner string, days int) Schedule {
	if days <= 0 {
		days = DefaultScheduleDays
	}
	now := s.clock()
	horizon := now.Add(time.Duration(days) * day)

	out := Schedule{
		Overdue:  []OverdueItem{},
		Upcoming: make(map[string][]Item),
		Days:     days,
	}
	for _, it := range s.Items(ctx, owner) {
		switch {
		case it.IsDue(now):
			out.Overdue = append(out.Overdue, overdue(it, now))
		case !it.NextDue.After(horizon):
			key := it.NextDue.UTC().Format(time.DateOnly)
			out.Upcoming[key] = append(out.Upcoming[key], it)
		}
	}
	return out
}

// Stats counts due items over the standard windows and lists the most
// overdue ones.
func (s *Scheduler) Stats(ctx context.Context, owner string) Stats {
	now := s.clock()
	week := now.Add(7 * day)
	month := now.Add(30 * day)

	items := s.Items(ctx, owner)
	st := Stats{TotalItems: len(items), MostOverdue: []OverdueItem{}}
	for _, it := range items {
		if it.IsDue(now) {
			st.DueNow++
			st.MostOverdue = append(st.MostOverdue, overdue(it, now))
		}
		if !it.NextDue.After(week) {
			st.DueWeek++
		}
		if !it.NextDue.After(month) {
			st.DueMonth++
		}
	}

	sort.SliceStable(st.MostOverdue, func(i, j int) bool {
		return st.MostOverdue[i].NextDue.Before(st.MostOverdue[j].NextDue)
	})
	if len(st.MostOverdue) > mostOverdueCount {
		st.MostOverdue = st.MostOverdue[:mostOverdueCount]
	}
	return st
}

// Suggest returns up to limit items for a review session: everything due now
// plus items due within the next two days, earliest first. limit <= 0
// selects DefaultSuggestMax.
func (s *Scheduler) Suggest(ctx context.Context, owner string, limit int) []Item {
	if limit <= 0 {
		limit = DefaultSuggestMax
	}
	cutoff := s.clock().Add(suggestLookahead)

	out := []Item{}
	for _, it := range s.Items(ctx, owner) {
		if it.NextDue.After(cutoff) {
			break
		}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}

func overdue(it Item, now time.Time) OverdueItem {
	return OverdueItem{Item: it, DaysOverdue: int(it.OverdueDays(now))}
}
