package spacedrep

import (
	"math"
	"time"

	"github.com/rodrick-mpofu/teachback-ai/internal/store"
)

const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
	MaxEaseFactor     = 2.5

	// PassingQuality is the lowest quality that counts as a successful recall.
	PassingQuality = 3
	MaxQuality     = 5

	day = 24 * time.Hour
)

// Item holds the SM-2 state of one topic for one owner.
type Item struct {
	Owner        string    `json:"owner"`
	Topic        string    `json:"topic"`
	EaseFactor   float64   `json:"ease_factor"`
	Repetitions  int       `json:"repetitions"`
	IntervalDays int       `json:"interval_days"`
	NextDue      time.Time `json:"next_due"`
	LastReviewed time.Time `json:"last_reviewed,omitzero"`
	History      []int     `json:"history"`
}

func newItem(owner, topic string, now time.Time) *Item {
	return &Item{
		Owner:        owner,
		Topic:        topic,
		EaseFactor:   DefaultEaseFactor,
		IntervalDays: 1,
		NextDue:      now.Add(day),
		History:      []int{},
	}
}

// IsDue reports whether the item is due at or before asOf.
func (it *Item) IsDue(asOf time.Time) bool {
	return !asOf.Before(it.NextDue)
}

// OverdueDays returns the fractional number of days past due, or 0.
func (it *Item) OverdueDays(now time.Time) float64 {
	if now.Before(it.NextDue) {
		return 0
	}
	return now.Sub(it.NextDue).Hours() / 24.0
}

// apply updates the item with one review of quality q taken at now.
func (it *Item) apply(q int, now time.Time) {
	if q < PassingQuality {
		it.Repetitions = 0
		it.IntervalDays = 1
	} else {
		it.Repetitions++
		switch it.Repetitions {
		case 1:
			it.IntervalDays = 1
		case 2:
			it.IntervalDays = 6
		default:
			it.IntervalDays = int(math.Round(float64(it.IntervalDays) * it.EaseFactor))
		}
	}
	if it.IntervalDays < 1 {
		it.IntervalDays = 1
	}

	miss := float64(MaxQuality - q)
	ef := it.EaseFactor + (0.1 - miss*(0.08+miss*0.02))
	it.EaseFactor = math.Min(MaxEaseFactor, math.Max(MinEaseFactor, ef))

	it.LastReviewed = now
	it.NextDue = now.Add(time.Duration(it.IntervalDays) * day)
	it.History = append(it.History, q)
}

func (it *Item) clone() Item {
	c := *it
	c.History = append([]int(nil), it.History...)
	if c.History == nil {
		c.History = []int{}
	}
	return c
}

func (it *Item) record() store.ReviewItemRecord {
	return store.ReviewItemRecord{
		Owner:        it.Owner,
		Topic:        it.Topic,
		EaseFactor:   it.EaseFactor,
		Repetitions:  it.Repetitions,
		IntervalDays: it.IntervalDays,
		NextDue:      it.NextDue,
		LastReviewed: it.LastReviewed,
		History:      append([]int(nil), it.History...),
	}
}

func itemFromRecord(rec store.ReviewItemRecord) *Item {
	it := &Item{
		Owner:        rec.Owner,
		Topic:        rec.Topic,
		EaseFactor:   rec.EaseFactor,
		Repetitions:  rec.Repetitions,
		IntervalDays: rec.IntervalDays,
		NextDue:      rec.NextDue,
		LastReviewed: rec.LastReviewed,
		History:      append([]int{}, rec.History...),
	}
	if it.EaseFactor == 0 {
		it.EaseFactor = DefaultEaseFactor
	}
	if it.IntervalDays < 1 {
		it.IntervalDays = 1
	}
	return it
}
